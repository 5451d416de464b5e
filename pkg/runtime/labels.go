package runtime

import (
	"encoding/json"
	"fmt"

	"github.com/flotilla-dev/flotilla/pkg/model"
)

// ApplicationLabel is the container label under which the full application
// configuration is stored. Discovery reads it back so List can report the
// configuration that produced each container, not just its name.
const ApplicationLabel = "dev.flotilla.application"

func encodeApplicationLabel(app model.Application) (string, error) {
	data, err := json.Marshal(app)
	if err != nil {
		return "", fmt.Errorf("failed to encode application %q: %w", app.Name, err)
	}
	return string(data), nil
}

func decodeApplicationLabel(value string) (model.Application, error) {
	var app model.Application
	if err := json.Unmarshal([]byte(value), &app); err != nil {
		return model.Application{}, fmt.Errorf("failed to decode application label: %w", err)
	}
	if app.Name == "" {
		return model.Application{}, fmt.Errorf("application label missing name")
	}
	return app, nil
}
