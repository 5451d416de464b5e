package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/flotilla-dev/flotilla/pkg/model"
)

// File is the on-disk deployment configuration. Applications are declared
// once and assigned to nodes by name.
type File struct {
	Version      int                          `yaml:"version" validate:"eq=1"`
	Applications map[string]ApplicationConfig `yaml:"applications" validate:"required,dive"`
	Nodes        map[string][]string          `yaml:"nodes" validate:"required"`
}

// ApplicationConfig describes a single application.
type ApplicationConfig struct {
	Image         string            `yaml:"image" validate:"required"`
	Ports         []string          `yaml:"ports"`
	Environment   map[string]string `yaml:"environment"`
	Links         []LinkConfig      `yaml:"links" validate:"dive"`
	Volume        *VolumeConfig     `yaml:"volume"`
	MemoryLimit   int64             `yaml:"memory_limit" validate:"gte=0"`
	CPUShares     int               `yaml:"cpu_shares" validate:"gte=0"`
	RestartPolicy *RestartConfig    `yaml:"restart_policy"`
}

// LinkConfig describes a named port alias into another application.
type LinkConfig struct {
	Alias      string `yaml:"alias" validate:"required"`
	LocalPort  int    `yaml:"local_port" validate:"gt=0,lte=65535"`
	RemotePort int    `yaml:"remote_port" validate:"gt=0,lte=65535"`
}

// VolumeConfig describes an application's dataset attachment. DatasetID is
// optional: a fresh id is generated the first time the parser sees the
// application and reused on every later parse, so reloading a watched file
// never reassigns datasets.
type VolumeConfig struct {
	DatasetID   string `yaml:"dataset_id" validate:"omitempty,uuid"`
	Mountpoint  string `yaml:"mountpoint" validate:"required,startswith=/"`
	MaximumSize int64  `yaml:"maximum_size" validate:"gte=0"`
}

// RestartConfig describes an application's restart policy.
type RestartConfig struct {
	Condition         string `yaml:"condition" validate:"required,oneof=never always on-failure"`
	MaximumRetryCount int    `yaml:"maximum_retry_count" validate:"gte=0"`
}

// Parser parses and validates deployment configuration files. Dataset ids
// generated for applications that leave dataset_id unset are remembered per
// application name, keeping them stable across parses of the same parser.
type Parser struct {
	validator *validator.Validate

	mu        sync.Mutex
	generated map[string]string
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	return &Parser{
		validator: validator.New(),
		generated: make(map[string]string),
	}
}

// datasetIDFor returns the generated dataset id for an application, minting
// one on first use.
func (p *Parser) datasetIDFor(appName string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.generated[appName]
	if !ok {
		id = uuid.NewString()
		p.generated[appName] = id
	}
	return id
}

// Load reads and parses a deployment configuration file.
func (p *Parser) Load(path string) (model.Deployment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Deployment{}, fmt.Errorf("failed to read configuration: %w", err)
	}
	return p.Parse(data)
}

// Parse decodes a YAML deployment configuration and assembles it into a
// validated Deployment. Unknown fields are rejected.
func (p *Parser) Parse(data []byte) (model.Deployment, error) {
	var file File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return model.Deployment{}, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := p.validator.Struct(file); err != nil {
		return model.Deployment{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	applications := make(map[string]model.Application, len(file.Applications))
	for name, spec := range file.Applications {
		app, err := p.buildApplication(name, spec)
		if err != nil {
			return model.Deployment{}, fmt.Errorf("application %q: %w", name, err)
		}
		applications[name] = app
	}

	nodes := make([]model.Node, 0, len(file.Nodes))
	for hostname, names := range file.Nodes {
		if hostname == "" {
			return model.Deployment{}, &model.ValidationError{
				Field:  "nodes",
				Reason: "empty hostname",
			}
		}

		apps := make([]model.Application, 0, len(names))
		manifestations := make(map[string]model.Manifestation)
		for _, name := range names {
			app, ok := applications[name]
			if !ok {
				return model.Deployment{}, &model.ValidationError{
					Field:  "nodes." + hostname,
					Reason: fmt.Sprintf("unknown application %q", name),
				}
			}
			apps = append(apps, app)
			if app.Volume != nil {
				manifestations[app.Volume.Dataset().DatasetID] = app.Volume.Manifestation
			}
		}

		node, err := model.NewNode(hostname, apps, manifestations)
		if err != nil {
			return model.Deployment{}, fmt.Errorf("node %q: %w", hostname, err)
		}
		nodes = append(nodes, node)
	}

	deployment, err := model.NewDeployment(nodes...)
	if err != nil {
		return model.Deployment{}, err
	}
	return deployment, nil
}

func (p *Parser) buildApplication(name string, spec ApplicationConfig) (model.Application, error) {
	image, err := model.ParseDockerImage(spec.Image)
	if err != nil {
		return model.Application{}, err
	}

	ports := make([]model.PortMapping, 0, len(spec.Ports))
	for _, raw := range spec.Ports {
		mapping, err := parsePort(raw)
		if err != nil {
			return model.Application{}, err
		}
		ports = append(ports, mapping)
	}

	links := make([]model.Link, 0, len(spec.Links))
	for _, link := range spec.Links {
		links = append(links, model.Link{
			Alias:      link.Alias,
			LocalPort:  link.LocalPort,
			RemotePort: link.RemotePort,
		})
	}

	var volume *model.AttachedVolume
	if spec.Volume != nil {
		datasetID := spec.Volume.DatasetID
		if datasetID == "" {
			datasetID = p.datasetIDFor(name)
		}
		volume = &model.AttachedVolume{
			Manifestation: model.Manifestation{
				Dataset: model.Dataset{
					DatasetID:   datasetID,
					MaximumSize: spec.Volume.MaximumSize,
				},
				Primary: true,
			},
			Mountpoint: spec.Volume.Mountpoint,
		}
	}

	restart, err := buildRestartPolicy(spec.RestartPolicy)
	if err != nil {
		return model.Application{}, err
	}

	app := model.Application{
		Name:          name,
		Image:         image,
		Ports:         ports,
		Volume:        volume,
		Links:         links,
		Environment:   spec.Environment,
		MemoryLimit:   spec.MemoryLimit,
		CPUShares:     spec.CPUShares,
		RestartPolicy: restart,
	}
	return app, nil
}

func buildRestartPolicy(spec *RestartConfig) (model.RestartPolicy, error) {
	if spec == nil {
		return model.RestartPolicy{}, nil
	}
	switch model.RestartCondition(spec.Condition) {
	case model.RestartNever:
		return model.RestartPolicy{}, nil
	case model.RestartAlways:
		return model.RestartPolicy{Condition: model.RestartAlways}, nil
	case model.RestartOnFailure:
		if spec.MaximumRetryCount == 0 {
			return model.RestartOnFailureUnlimited(), nil
		}
		return model.NewRestartOnFailure(spec.MaximumRetryCount)
	default:
		return model.RestartPolicy{}, &model.ValidationError{
			Field:  "restart_policy.condition",
			Reason: fmt.Sprintf("unknown condition %q", spec.Condition),
		}
	}
}

// parsePort parses "external:internal" or a single port that maps to itself.
func parsePort(raw string) (model.PortMapping, error) {
	external, internal, found := strings.Cut(raw, ":")
	if !found {
		internal = external
	}

	ext, err := parsePortNumber(external)
	if err != nil {
		return model.PortMapping{}, err
	}
	in, err := parsePortNumber(internal)
	if err != nil {
		return model.PortMapping{}, err
	}
	return model.PortMapping{Internal: in, External: ext}, nil
}

func parsePortNumber(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > 65535 {
		return 0, &model.ValidationError{
			Field:  "ports",
			Reason: fmt.Sprintf("invalid port %q", s),
		}
	}
	return n, nil
}
