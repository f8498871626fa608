package host

import (
	"log/slog"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/logger"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
)

// Setting is a fixed value written to a control file
type Setting struct {
	Path  string
	Value string
}

// Controller writes parameter values to kernel control files
type Controller struct {
	fs  FileSystem
	log *slog.Logger
}

// NewController creates a controller writing through fs
func NewController(fs FileSystem) *Controller {
	return &Controller{fs: fs, log: logger.Component("host")}
}

// Write writes value to path, wrapping failures as *models.ApplyError
func (c *Controller) Write(path, value string) error {
	if err := c.fs.WriteFile(path, []byte(value)); err != nil {
		return &models.ApplyError{Path: path, Value: value, Err: err}
	}
	c.log.Debug("wrote control file", "path", path, "value", value)
	return nil
}

// Apply encodes every component of vector with its parameter's encoding and
// writes it, in parameter order. It stops at the first failure; the encoded values written so far are returned.
func (c *Controller) Apply(specs []models.ParameterSpec, vector models.ParameterVector) (map[string]string, error) {
	encoded := make(map[string]string, len(specs))
	for i, spec := range specs {
		value, err := spec.Encoding.Encode(vector[i])
		if err != nil {
			return encoded, &models.ApplyError{Path: spec.Name, Err: err}
		}
		if err := c.Write(spec.Name, value); err != nil {
			return encoded, err
		}
		encoded[spec.Name] = value
	}
	return encoded, nil
}

// Setup writes run-wide settings once before the first trial
func (c *Controller) Setup(settings []Setting) error {
	for _, s := range settings {
		if err := c.Write(s.Path, s.Value); err != nil {
			return err
		}
		c.log.Info("applied setup", "path", s.Path, "value", s.Value)
	}
	return nil
}
