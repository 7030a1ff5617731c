package main

import (
	"github.com/gamemeet/gamemeet/internal/database"
	"github.com/gamemeet/gamemeet/internal/session"
)

type Options struct {
	Addr    string           `toml:"addr"`
	DB      database.Options `toml:"db"`
	Session session.Options  `toml:"session"`
	// Tokens maps bearer tokens to user ids.
	Tokens map[string]string `toml:"tokens"`
}

func (o *Options) FillDefaults() {
	if o.Addr == "" {
		o.Addr = "127.0.0.1:8080"
	}
	o.DB.FillDefaults()
	o.Session.FillDefaults()
}
