package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	logging "github.com/ipfs/go-log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/evvvvil/keystone-5-fields-cloudinary-image/api"
	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cloudinary"
	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms"
	"github.com/evvvvil/keystone-5-fields-cloudinary-image/cms/store"
)

var (
	resolver        *api.Resolver
	deploymentStage = os.Getenv("STAGE")
	dynamoTableName = os.Getenv("TABLE_NAME")
	cloudName       = os.Getenv("CLOUDINARY_CLOUD_NAME")
	cloudKey        = os.Getenv("CLOUDINARY_KEY")
	cloudSecret     = os.Getenv("CLOUDINARY_SECRET")
	cloudFolder     = os.Getenv("CLOUDINARY_FOLDER")

	logger = logging.Logger("handler.Main")
)

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "*",
}

func jsonResponse(body []byte, err error) (events.APIGatewayProxyResponse, error) {
	if err != nil {
		logger.Errorf("error rendering: %v", err)
		return events.APIGatewayProxyResponse{Body: "internal error", StatusCode: 500, Headers: corsHeaders}, nil
	}
	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range corsHeaders {
		headers[k] = v
	}
	return events.APIGatewayProxyResponse{Body: string(body), StatusCode: 200, Headers: headers}, nil
}

func Handler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger.Infof("Processing Lambda request %s", request.RequestContext.RequestID)
	if request.HTTPMethod == "OPTIONS" {
		return events.APIGatewayProxyResponse{
			StatusCode: 200,
			Headers:    corsHeaders,
		}, nil
	}

	switch {
	case strings.HasSuffix(request.Path, "/admin/meta"):
		return jsonResponse(json.Marshal(resolver.Registry.AdminMeta()))
	case strings.HasSuffix(request.Path, "/schema.json"):
		return jsonResponse(resolver.Schema.IntrospectionJSON())
	}

	// If no query is provided in the HTTP request body then show the explorer
	if len(request.Body) < 1 {
		return events.APIGatewayProxyResponse{
			Body:       page,
			StatusCode: 200,
			Headers: map[string]string{
				"Content-Type":                 "text/html",
				"Access-Control-Allow-Origin":  "*",
				"Access-Control-Allow-Headers": "*",
			},
		}, nil
	}

	var params struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	if err := json.Unmarshal([]byte(request.Body), &params); err != nil {
		logger.Warningf("Could not decode body: %v", err)
		return events.APIGatewayProxyResponse{
			Body:       "could not decode body",
			StatusCode: 400,
			Headers:    corsHeaders,
		}, nil
	}

	response := resolver.Exec(ctx, params.Query, params.OperationName, params.Variables)
	return jsonResponse(json.Marshal(response))
}

func getStore() (cms.Store, error) {
	if dynamoTableName != "" {
		logger.Infof("using dynamo datastore: %s", dynamoTableName)
		return store.NewDynamoStore(dynamoTableName)
	}
	return store.NewMemoryStore(), nil
}

func setup(ctx context.Context) (*api.Resolver, error) {
	st, err := getStore()
	if err != nil {
		return nil, err
	}
	adapter, err := cloudinary.New(&cloudinary.Config{
		CloudName: cloudName,
		APIKey:    cloudKey,
		APISecret: cloudSecret,
		Folder:    cloudFolder,
	})
	if err != nil {
		return nil, err
	}
	return api.NewResolver(ctx, &api.Config{Adapter: adapter, Store: st})
}

func init() {
	r, err := setup(context.Background())
	if err != nil {
		panic(err)
	}
	resolver = r
}

func main() {
	log.Println("starting handler")
	logging.SetLogLevel("*", "info")
	lambda.Start(Handler)
}

var page = fmt.Sprintf(`
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
	<body style="width: 100%%; height: 100%%; margin: 0; overflow: hidden;">
		<div id="graphiql" style="height: 100vh;">Loading...</div>
		<script>
			function graphQLFetcher(graphQLParams) {
				return fetch("/%s/graphql", {
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
`, deploymentStage)
