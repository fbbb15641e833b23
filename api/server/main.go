package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	logging "github.com/ipfs/go-log"

	"github.com/evvvvil/keystone-5-fields-cloudinary-image/api"
	"github.com/evvvvil/keystone-5-fields-cloudinary-image/api/publisher"
	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cloudinary"
	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms"
	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms/store"
)

var (
	logger = logging.Logger("server")

	cloudName   = os.Getenv("CLOUDINARY_CLOUD_NAME")
	cloudKey    = os.Getenv("CLOUDINARY_KEY")
	cloudSecret = os.Getenv("CLOUDINARY_SECRET")
	cloudFolder = os.Getenv("CLOUDINARY_FOLDER")
	port        = os.Getenv("PORT")
)

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// allow cross domain AJAX requests
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func jsonHandler(body func() ([]byte, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bits, err := body()
		if err != nil {
			logger.Errorf("error rendering %s: %v", r.URL.Path, err)
			w.WriteHeader(500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(bits)
	})
}

// Setup starts the broker, wires change events to it and registers the
// HTTP routes on mux.
func Setup(ctx context.Context, mux *http.ServeMux, adapter cms.FileAdapter, brokerConfig *BrokerConfig) (*api.Resolver, error) {
	cli, err := StartMQTT(brokerConfig)
	if err != nil {
		return nil, err
	}

	updateChan, err := publisher.StartPublishing(ctx, func(ctx context.Context, topic string, payload []byte) error {
		logger.Debugf("updated: %s", topic)
		tok := cli.Publish(topic, byte(0), false, payload)
		tok.Wait()
		return tok.Error()
	})
	if err != nil {
		return nil, err
	}

	r, err := api.NewResolver(ctx, &api.Config{
		Adapter:       adapter,
		Store:         store.NewMemoryStore(),
		UpdateChannel: updateChan,
	})
	if err != nil {
		return nil, err
	}

	mux.Handle("/", CorsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debugf("rendering igraphql")
		w.Write(page)
	})))
	mux.Handle("/graphql", CorsMiddleware(r.Handler()))
	mux.Handle("/admin/meta", CorsMiddleware(jsonHandler(func() ([]byte, error) {
		return json.Marshal(r.Registry.AdminMeta())
	})))
	mux.Handle("/schema.json", CorsMiddleware(jsonHandler(r.Schema.IntrospectionJSON)))

	return r, nil
}

func main() {
	logging.SetLogLevel("*", "info")
	logging.SetLogLevel("server", "debug")

	adapter, err := cloudinary.New(&cloudinary.Config{
		CloudName: cloudName,
		APIKey:    cloudKey,
		APISecret: cloudSecret,
		Folder:    cloudFolder,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := Setup(ctx, http.DefaultServeMux, adapter, nil); err != nil {
		log.Fatal(err)
	}

	if port == "" {
		port = "9011"
	}
	fmt.Printf("running on port %s path: /graphql\n", port)
	log.Fatal(http.ListenAndServe(":"+port, nil))
}

var page = []byte(`
<!DOCTYPE html>
<html>
	<head>
		<link href="https://cdnjs.cloudflare.com/ajax/libs/graphiql/0.17.5/graphiql.min.css" rel="stylesheet" />
		<script src="https://cdnjs.cloudflare.com/ajax/libs/es6-promise/4.1.1/es6-promise.auto.min.js"></script>
		<script src="https://cdnjs.cloudflare.com/ajax/libs/fetch/2.0.3/fetch.min.js"></script>
		<script src="https://cdnjs.cloudflare.com/ajax/libs/react/16.2.0/umd/react.production.min.js"></script>
		<script src="https://cdnjs.cloudflare.com/ajax/libs/react-dom/16.2.0/umd/react-dom.production.min.js"></script>
		<script src="https://cdnjs.cloudflare.com/ajax/libs/graphiql/0.17.5/graphiql.min.js"></script>
	</head>
	<body style="width: 100%; height: 100%; margin: 0; overflow: hidden;">
		<div id="graphiql" style="height: 100vh;">Loading...</div>
		<script>
			function graphQLFetcher(graphQLParams) {
				return fetch("/graphql", {
					method: "post",
					body: JSON.stringify(graphQLParams),
					credentials: "include",
				}).then(function (response) {
					return response.text();
				}).then(function (responseBody) {
					try {
						return JSON.parse(responseBody);
					} catch (error) {
						return responseBody;
					}
				});
			}
			ReactDOM.render(
				React.createElement(GraphiQL, {fetcher: graphQLFetcher}),
				document.getElementById("graphiql")
			);
		</script>
	</body>
</html>
`)
