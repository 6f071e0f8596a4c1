package tabular

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/paulmach/orb/geojson"
)

// ReadGeoJSON decodes a FeatureCollection.
func ReadGeoJSON(r io.Reader) (*geojson.FeatureCollection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("tabular: read geojson: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("tabular: decode geojson: %w", err)
	}
	return fc, nil
}

// ReadGeoJSONFile opens path and decodes it with ReadGeoJSON.
func ReadGeoJSONFile(path string) (*geojson.FeatureCollection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tabular: %w", err)
	}
	defer f.Close()
	fc, err := ReadGeoJSON(f)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return fc, nil
}

// PropString returns property key of f as a string. Whole numbers are
// rendered without a fractional part so numeric ids join with CSV codes.
// The "id" key falls back to the feature id.
func PropString(f *geojson.Feature, key string) (string, bool) {
	v, ok := f.Properties[key]
	if (!ok || v == nil) && key == "id" && f.ID != nil {
		v, ok = f.ID, true
	}
	if !ok || v == nil {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return fmt.Sprint(v), true
}

// RequireProperties fails when any feature lacks one of keys.
func RequireProperties(fc *geojson.FeatureCollection, source string, keys ...string) error {
	var missing []string
	for _, k := range keys {
		for _, f := range fc.Features {
			if _, ok := PropString(f, k); !ok {
				missing = append(missing, k)
				break
			}
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Source: source, Missing: missing}
	}
	return nil
}
