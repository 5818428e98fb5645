package main

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"kitbot/extensions"
	"kitbot/web"
)

type Config struct {
	LogLevel                  string        `env:"LOG_LEVEL,required=true"`
	LogDir                    string        `env:"LOG_DIR,required=true"`
	BadgerFilepath            string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath             string        `env:"BLUGE_FILEPATH,required=true"`
	ManifestPath              string        `env:"MANIFEST_PATH,required=true"`
	RestartInterval           time.Duration `env:"RESTART_INTERVAL,required=true"`
	ModerationCharReplacement rune          `env:"MODERATION_CHARACTER_REPLACEMENT,default=42"`
	HTTPAddr                  string        `env:"HTTP_ADDR,default=:8080"`
}

// RoomConfig is one room entry of the manifest.
type RoomConfig struct {
	Host     string           `yaml:"host" validate:"required"`
	Room     string           `yaml:"room" validate:"required"`
	Nick     string           `yaml:"nick" validate:"required"`
	Password string           `yaml:"password"`
	RelayURL string           `yaml:"relay_url" validate:"required,url"`
	Auth     *web.Credentials `yaml:"auth"`
}

// Manifest is the YAML side of the configuration: which rooms to join,
// which extensions to load, and the word list the transcripts mask.
type Manifest struct {
	Rooms      []RoomConfig          `yaml:"rooms" validate:"required,min=1,dive"`
	Extensions []extensions.Manifest `yaml:"extensions" validate:"dive"`
	Moderation struct {
		Words []string `yaml:"words"`
	} `yaml:"moderation"`
}

func loadManifest(path string) (Manifest, error) {
	var manifest Manifest
	raw, err := os.ReadFile(path)
	if err != nil {
		return manifest, fmt.Errorf("read manifest: %w", err)
	}
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return manifest, fmt.Errorf("parse manifest: %w", err)
	}
	if err := validator.New().Struct(manifest); err != nil {
		return manifest, fmt.Errorf("invalid manifest: %w", err)
	}
	return manifest, nil
}
