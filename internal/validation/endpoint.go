package validation

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/go-viper/mapstructure/v2"

	"github.com/estuary/flow-sub001/internal/catalog"
)

// mergeConfig applies patch over base as a JSON merge patch (RFC 7386).
// Absent configurations are empty objects.
func mergeConfig(base, patch json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(base)) == 0 {
		base = json.RawMessage(`{}`)
	}
	if len(bytes.TrimSpace(patch)) == 0 {
		return base, nil
	}
	merged, err := jsonpatch.MergePatch(base, patch)
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// bucketConfig is the portion of a storage endpoint's configuration naming its location.
type bucketConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// storeURI returns the fragment store URI of a storage endpoint's merged configuration.
func storeURI(endpointType catalog.EndpointType, config json.RawMessage) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(config, &raw); err != nil {
		return "", fmt.Errorf("configuration must be a JSON object: %w", err)
	}

	var cfg bucketConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &cfg})
	if err != nil {
		return "", err
	}
	if err := dec.Decode(raw); err != nil {
		return "", err
	}
	if cfg.Bucket == "" {
		return "", fmt.Errorf("bucket is required")
	}
	return fmt.Sprintf("%s://%s/%s", endpointType, cfg.Bucket, cfg.Prefix), nil
}
