// Package validator provides composable validation rules.
//
// A Rule pairs a check with the ValidationError reported when it fails.
// Apply runs a list of rules and returns ValidationErrors holding every failure,
// so callers report all problems with an input at once:
//
//	err := validator.Apply(
//	    validator.RequiredString("name", t.Name),
//	    validator.When(prefs.QuietHoursStart != "",
//	        validator.ValidTimeOfDay("quiet_hours_start", prefs.QuietHoursStart)),
//	)
//
// Date rules take the reference time explicitly instead of reading the wall
// clock, so services with an injected clock stay deterministic.
package validator
