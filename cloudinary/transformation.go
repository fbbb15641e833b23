package cloudinary

import (
	"sort"
	"strings"
)

// shortKeys maps transformation option names to Cloudinary URL parameters.
var shortKeys = map[string]string{
	"angle":          "a",
	"aspect_ratio":   "ar",
	"background":     "b",
	"border":         "bo",
	"color":          "co",
	"color_space":    "cs",
	"crop":           "c",
	"default_image":  "d",
	"delay":          "dl",
	"density":        "dn",
	"dpr":            "dpr",
	"effect":         "e",
	"fetch_format":   "f",
	"flags":          "fl",
	"gravity":        "g",
	"height":         "h",
	"opacity":        "o",
	"overlay":        "l",
	"page":           "pg",
	"quality":        "q",
	"radius":         "r",
	"transformation": "t",
	"underlay":       "u",
	"width":          "w",
	"x":              "x",
	"y":              "y",
	"zoom":           "z",
}

// TransformationString renders options as a URL transformation component
// such as "c_fill,h_200,w_300". Unknown options and empty values are
// dropped. Width and height only apply together with a crop mode or a
// layer, as Cloudinary otherwise ignores them.
func TransformationString(options map[string]string) string {
	_, hasCrop := nonEmpty(options, "crop")
	_, hasOverlay := nonEmpty(options, "overlay")
	_, hasUnderlay := nonEmpty(options, "underlay")
	sized := hasCrop || hasOverlay || hasUnderlay

	var params []string
	for name, value := range options {
		short, ok := shortKeys[name]
		if !ok || value == "" {
			continue
		}
		if (name == "width" || name == "height") && !sized {
			continue
		}
		params = append(params, short+"_"+value)
	}
	sort.Strings(params)
	return strings.Join(params, ",")
}

func nonEmpty(options map[string]string, key string) (string, bool) {
	v, ok := options[key]
	return v, ok && v != ""
}
