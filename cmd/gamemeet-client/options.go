package main

import (
	"time"

	"github.com/gamemeet/gamemeet/internal/matching"
	"github.com/gamemeet/gamemeet/internal/util/backoff"
)

type Options struct {
	URL string `toml:"url"`
	// Tokens lists the participants to simulate, one bearer token each.
	Tokens       []string           `toml:"tokens"`
	Condition    matching.Criterion `toml:"condition"`
	PollInterval time.Duration      `toml:"poll-interval"`
	Backoff      backoff.Options    `toml:"backoff"`
}

func (o *Options) FillDefaults() {
	if o.PollInterval == 0 {
		o.PollInterval = 1 * time.Second
	}
	o.Backoff.FillDefaults()
}
