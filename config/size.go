package config

import (
	"time"

	"github.com/docker/go-units"
)

type SizeArgument struct {
	Size int64 `arg:"" help:"size in bytes"`
}

func (s *SizeArgument) UnmarshalText(text []byte) (err error) {
	s.Size, err = units.FromHumanSize(string(text))
	return
}

func (s SizeArgument) MarshalText() ([]byte, error) {
	return []byte(units.HumanSize(float64(s.Size))), nil
}

// DurationArgument accepts Go durations, plus a "d" suffix for days.
type DurationArgument struct {
	time.Duration
}

func (d *DurationArgument) UnmarshalText(text []byte) error {
	s := string(text)
	if n := len(s); n > 1 && s[n-1] == 'd' {
		days, err := time.ParseDuration(s[:n-1] + "h")
		if err != nil {
			return err
		}
		d.Duration = days * 24
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d DurationArgument) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
