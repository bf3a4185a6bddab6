package validator_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/libraryops/pkg/validator"
)

func TestApply_CollectsAllFailures(t *testing.T) {
	t.Parallel()

	err := validator.Apply(
		validator.RequiredString("title", "  "),
		validator.RequiredString("message", "ok"),
		validator.ValidTimeOfDay("quiet_hours_start", "25:00"),
	)
	require.Error(t, err)
	require.True(t, validator.IsValidationError(err))

	ve := validator.ExtractValidationErrors(err)
	assert.Len(t, ve, 2)
	assert.True(t, ve.Has("title"))
	assert.True(t, ve.Has("quiet_hours_start"))
	assert.False(t, ve.Has("message"))
	assert.Equal(t, []string{"field is required"}, ve.Get("title"))
	assert.Contains(t, err.Error(), "title: field is required")
}

func TestApply_NoRules(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validator.Apply())
}

func TestWhen(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validator.Apply(validator.When(false, validator.ValidURL("url", "nope"))))
	assert.Error(t, validator.Apply(validator.When(true, validator.ValidURL("url", "nope"))))
}

func TestValidTimeOfDay(t *testing.T) {
	t.Parallel()

	for _, ok := range []string{"00:00", "07:30", "22:00", "23:59"} {
		assert.NoError(t, validator.Apply(validator.ValidTimeOfDay("t", ok)), ok)
	}
	for _, bad := range []string{"", "7:30", "24:00", "12:60", "12-30", "noon"} {
		assert.Error(t, validator.Apply(validator.ValidTimeOfDay("t", bad)), bad)
	}
}

func TestValidURL(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validator.Apply(validator.ValidURL("u", "https://hooks.example.com/lib")))
	assert.Error(t, validator.Apply(validator.ValidURL("u", "not a url")))
	assert.Error(t, validator.Apply(validator.ValidURL("u", "/relative/path")))
}

func TestFormatRules(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validator.Apply(validator.ValidEmail("e", "reader@library.org")))
	assert.Error(t, validator.Apply(validator.ValidEmail("e", "reader@localhost")))
	assert.NoError(t, validator.Apply(validator.ValidPhone("p", "+351912345678")))
	assert.Error(t, validator.Apply(validator.ValidPhone("p", "12ab")))
	assert.NoError(t, validator.Apply(validator.ValidTimezone("tz", "UTC")))
	assert.Error(t, validator.Apply(validator.ValidTimezone("tz", "Mars/Olympus")))
}

func TestDateRules(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	assert.NoError(t, validator.Apply(validator.DateAfter("at", now.Add(time.Second), now)))
	assert.Error(t, validator.Apply(validator.DateAfter("at", now, now)))
	assert.NoError(t, validator.Apply(validator.DateNotAfter("at", now, now)))
	assert.Error(t, validator.Apply(validator.DateNotAfter("at", now.Add(time.Second), now)))
}

func TestCollectionRules(t *testing.T) {
	t.Parallel()

	assert.Error(t, validator.Apply(validator.RequiredSlice[string]("ids", nil)))
	assert.Error(t, validator.Apply(validator.MaxLenSlice("ids", []int{1, 2, 3}, 2)))
	assert.NoError(t, validator.Apply(validator.OneOf("freq", "DAILY", "DAILY", "WEEKLY")))
	assert.Error(t, validator.Apply(validator.OneOf("freq", "HOURLY", "DAILY", "WEEKLY")))
	assert.Error(t, validator.Apply(validator.MaxLenString("name", "abcdef", 5)))
}
