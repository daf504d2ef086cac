// Package config loads host connection settings from the environment and
// card options from YAML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds host connection settings.
type Config struct {
	Host         HostConfig
	Entity       string
	PointsSensor string
}

// HostConfig describes how to reach the host REST API.
type HostConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// Load reads a .env file if present, then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env file", "error", err)
	}

	return &Config{
		Host: HostConfig{
			URL:     getEnv("CHOREBOT_HOST_URL", ""),
			Token:   getEnv("CHOREBOT_TOKEN", ""),
			Timeout: time.Duration(getEnvAsInt("CHOREBOT_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Entity:       getEnv("CHOREBOT_ENTITY", "todo.chorebot_chores"),
		PointsSensor: getEnv("CHOREBOT_POINTS_SENSOR", "sensor.chorebot_points"),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// Card mirrors the options of a dashboard card.
type Card struct {
	Entity              string   `yaml:"entity"`
	Title               string   `yaml:"title"`
	ShowDatelessTasks   *bool    `yaml:"show_dateless_tasks"`
	ShowFutureTasks     bool     `yaml:"show_future_tasks"`
	FilterSectionID     string   `yaml:"filter_section_id"`
	PersonEntity        string   `yaml:"person_entity"`
	UntaggedHeader      string   `yaml:"untagged_header"`
	UpcomingHeader      string   `yaml:"upcoming_header"`
	TagGroupOrder       []string `yaml:"tag_group_order"`
	ShowPoints          bool     `yaml:"show_points"`
	SortBy              string   `yaml:"sort_by"`
	ShowDisabledRewards bool     `yaml:"show_disabled_rewards"`
	DefaultSectionID    string   `yaml:"default_section_id"`
	DefaultTags         []string `yaml:"default_tags"`
}

// DefaultCard returns the stub card configuration.
func DefaultCard() Card {
	return Card{
		Title:          "Tasks",
		UntaggedHeader: "Untagged",
		UpcomingHeader: "Upcoming",
		SortBy:         "cost",
	}
}

// IncludeDateless defaults to true when unset.
func (c Card) IncludeDateless() bool {
	return c.ShowDatelessTasks == nil || *c.ShowDatelessTasks
}

// LoadCard reads a card YAML file over the defaults. An empty path returns
// the defaults.
func LoadCard(path string) (Card, error) {
	card := DefaultCard()
	if path == "" {
		return card, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return card, fmt.Errorf("could not read card config '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, &card); err != nil {
		return card, fmt.Errorf("could not parse card config '%s': %w", path, err)
	}
	if card.UntaggedHeader == "" {
		card.UntaggedHeader = "Untagged"
	}
	if card.UpcomingHeader == "" {
		card.UpcomingHeader = "Upcoming"
	}
	return card, nil
}
