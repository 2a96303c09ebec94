package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/example/maskstudio/internal/palette"
)

// Parse reads configuration from an io.Reader.
func Parse(r io.Reader) (*Config, error) {
	cfg := New()
	scanner := bufio.NewScanner(r)

	// Context for parsing
	var currentSection string
	var currentPalette *palette.Palette
	var currentLayer *Layer

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		// Handle Sections
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(line, "["), "]"))
			currentPalette = nil
			currentLayer = nil

			switch {
			case strings.HasPrefix(currentSection, "palette."):
				name := strings.TrimPrefix(currentSection, "palette.")
				// Start with defaults so missing keys are fine
				currentPalette = palette.Default()
				currentPalette.Name = name
				cfg.Palettes[name] = currentPalette
			case strings.HasPrefix(currentSection, "layer."):
				name := strings.TrimPrefix(currentSection, "layer.")
				currentLayer = &Layer{Opacity: -1}
				cfg.Layers[name] = currentLayer
			}
			continue
		}

		// Parse Key = Value or Key: Value
		var parts []string
		if strings.Contains(line, "=") {
			parts = strings.SplitN(line, "=", 2)
		} else if strings.Contains(line, ":") {
			parts = strings.SplitN(line, ":", 2)
		} else {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		// Remove quotes if present
		if strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"") && len(value) >= 2 {
			value = value[1 : len(value)-1]
		}

		var err error
		switch {
		case currentPalette != nil:
			err = palette.SetField(currentPalette, key, value)
		case currentLayer != nil:
			err = setLayerField(currentLayer, key, value)
		case currentSection == "service":
			err = setServiceField(&cfg.Service, key, value)
		case currentSection == "design_api":
			setDesignAPIField(&cfg.DesignAPI, key, value)
		case currentSection == "brush":
			err = setBrushField(&cfg.Brush, key, value)
		case currentSection == "log":
			setLogField(&cfg.Log, key, value)
		case currentSection == "notify":
			err = setNotifyField(&cfg.Notify, key, value)
		case currentSection == "":
			setRootField(cfg, key, value)
		}
		if err != nil {
			if currentSection == "" {
				return nil, fmt.Errorf("error in root section: %w", err)
			}
			return nil, fmt.Errorf("error in section [%s]: %w", currentSection, err)
		}
	}

	return cfg, scanner.Err()
}

func setRootField(cfg *Config, key, value string) {
	switch strings.ToLower(key) {
	case "palette":
		cfg.Palette = value
	case "save_dir":
		cfg.SaveDir = value
	}
}

func setServiceField(s *Service, key, value string) error {
	var err error
	switch strings.ToLower(key) {
	case "base_url", "url":
		s.BaseURL = value
	case "timeout":
		s.Timeout, err = parseDuration(key, value)
	case "poll_interval":
		s.PollInterval, err = parseDuration(key, value)
	case "poll_attempts":
		s.PollAttempts, err = parseInt(key, value)
	case "result_attempts":
		s.ResultAttempts, err = parseInt(key, value)
	case "asset_ttl":
		s.AssetTTL, err = parseDuration(key, value)
	}
	return err
}

func setDesignAPIField(d *DesignAPI, key, value string) {
	switch strings.ToLower(key) {
	case "base_url", "url":
		d.BaseURL = value
	case "token":
		d.Token = value
	}
}

func setBrushField(b *Brush, key, value string) error {
	switch strings.ToLower(key) {
	case "size":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid brush size %q", value)
		}
		b.Size = f
	case "refine":
		b.Refine = value
	case "show_preview":
		v, err := parseBool(key, value)
		if err != nil {
			return err
		}
		b.ShowPreview = v
	case "debounce":
		d, err := parseDuration(key, value)
		if err != nil {
			return err
		}
		b.Debounce = d
	}
	return nil
}

func setLogField(l *Log, key, value string) {
	switch strings.ToLower(key) {
	case "mode":
		l.Mode = value
	case "level":
		l.Level = value
	case "file":
		l.File = value
	}
}

func setNotifyField(n *Notify, key, value string) error {
	b, err := parseBool(key, value)
	if err != nil {
		return err
	}
	switch strings.ToLower(key) {
	case "generated":
		n.Generated = b
	case "saved":
		n.Saved = b
	case "copied":
		n.Copied = b
	case "applied":
		n.Applied = b
	}
	return nil
}

func setLayerField(l *Layer, key, value string) error {
	switch strings.ToLower(key) {
	case "color", "colour":
		c, err := palette.ParseColor(value)
		if err != nil {
			return fmt.Errorf("invalid color for key %s: %w", key, err)
		}
		l.Color = c
	case "opacity":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 || f > 1 {
			return fmt.Errorf("opacity must be between 0 and 1, got %q", value)
		}
		l.Opacity = f
	}
	return nil
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for key %s: %w", key, err)
	}
	return b, nil
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid positive integer for key %s: %q", key, value)
	}
	return n, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for key %s: %w", key, err)
	}
	return d, nil
}
