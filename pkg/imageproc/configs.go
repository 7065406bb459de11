package imageproc

const (
	DefaultTargetWidth = 585
	DefaultJPEGQuality = 90
)

// Config controls the output geometry and encoding.
type Config struct {
	TargetWidth int `yaml:"target_width" envconfig:"PREPROCESS_TARGET_WIDTH"`
	JPEGQuality int `yaml:"jpeg_quality" envconfig:"PREPROCESS_JPEG_QUALITY"`
}

func (c Config) withDefaults() Config {
	if c.TargetWidth <= 0 {
		c.TargetWidth = DefaultTargetWidth
	}
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		c.JPEGQuality = DefaultJPEGQuality
	}
	return c
}
