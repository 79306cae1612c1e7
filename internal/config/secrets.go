package config

import (
	"fmt"
	"os"

	"gopkg.in/ini.v1"
)

// SecretsSection is the INI section holding connection settings.
const SecretsSection = "connections.sheets"

// ApplySecrets overrides connection settings with the non-empty keys of the
// [connections.sheets] section of the INI file at path. A missing file or
// section changes nothing.
func (c *Config) ApplySecrets(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("load secrets file: %w", err)
	}
	section, err := file.GetSection(SecretsSection)
	if err != nil {
		return nil
	}

	set := func(key string, dst *string) {
		if section.HasKey(key) {
			if v := section.Key(key).String(); v != "" {
				*dst = v
			}
		}
	}
	set("resource", &c.Resource)
	set("backend", &c.Backend)
	set("bucket", &c.S3.Bucket)
	set("key", &c.S3.Key)
	set("region", &c.S3.Region)
	set("profile", &c.S3.Profile)
	set("dir", &c.File.Dir)
	return nil
}
