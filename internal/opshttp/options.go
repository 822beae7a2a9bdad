package opshttp

import (
	"net/http"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/health"
)

type Options struct {
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Checker
	Readiness   health.Checker
	// ContentInfo, when set, is served as JSON on /-/content
	ContentInfo http.Handler
	// OnPanic runs after a recovered handler panic, e.g. a prometheus counter
	OnPanic func()
}
