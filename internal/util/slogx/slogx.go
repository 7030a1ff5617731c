package slogx

import (
	"context"
	"log/slog"
)

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// DiscardLogger returns a logger that drops everything. Handy as a default in
// options structs and in tests.
func DiscardLogger() *slog.Logger {
	return slog.New(discardHandler{})
}

func Err(err error) slog.Attr {
	return slog.String("err", err.Error())
}
