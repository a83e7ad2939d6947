package webfetch

import "willnorris.com/go/microformats"

// FindItem returns the first top-level item carrying any of types.
func FindItem(data *microformats.Data, types ...string) *microformats.Microformat {
	for _, item := range data.Items {
		for _, t := range item.Type {
			for _, want := range types {
				if t == want {
					return item
				}
			}
		}
	}
	return nil
}

// PropertyString returns the first value of property key as a plain string.
// Image properties with alt text and nested microformats carry their string
// form under "value".
func PropertyString(item *microformats.Microformat, key string) string {
	values := item.Properties[key]
	if len(values) == 0 {
		return ""
	}
	switch v := values[0].(type) {
	case string:
		return v
	case map[string]string:
		return v["value"]
	case map[string]interface{}:
		s, _ := v["value"].(string)
		return s
	case *microformats.Microformat:
		return v.Value
	}
	return ""
}
