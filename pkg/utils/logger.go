package utils

import "go.uber.org/zap"

// NewLogger returns a zap logger named "kotaeru". When debug is true it uses the
// development config (human-readable, debug level); otherwise production JSON at info level.
func NewLogger(debug bool) (*zap.Logger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return l.Named("kotaeru"), nil
}
