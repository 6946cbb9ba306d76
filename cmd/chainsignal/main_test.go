package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubcommandsExposeExpectedFlags(t *testing.T) {
	run := newRunCmd()
	assert.Equal(t, "run", run.Use)
	assert.NotNil(t, run.Flags().Lookup("websocket-url"))
	assert.NotNil(t, run.Flags().Lookup("metrics-addr"))
	assert.NotNil(t, run.Flags().Lookup("postgres-dsn"))

	schedule := newScheduleCmd()
	assert.Equal(t, "schedule", schedule.Use)
	assert.NotNil(t, schedule.Flags().Lookup("cron"))
	assert.NotNil(t, schedule.Flags().Lookup("postgres-dsn"))

	report := newReportCmd()
	assert.Equal(t, "report", report.Use)
	assert.NotNil(t, report.Flags().Lookup("json"))

	health := newHealthCmd()
	assert.Equal(t, "health", health.Use)
	assert.NotNil(t, health.Flags().Lookup("json"))
	assert.NotNil(t, health.Flags().Lookup("timeout"))
}
