package types

// Application configuration keys read from the application_configuration table.
const (
	FlagMeteredBillingEnabled   = "IsMeteredBillingEnabled"
	FlagMissingSchedulerEmail   = "EnablesMissingSchedulerEmail"
	FlagSuccessfulSchedulerMail = "EnablesSuccessfulSchedulerEmail"
	FlagFailureSchedulerEmail   = "EnablesFailureSchedulerEmail"
)

// FrequencyFlag returns the configuration key enabling schedules of f,
// e.g. "EnableHourlyMeterSchedules".
func FrequencyFlag(f Frequency) string {
	return "Enable" + string(f) + "MeterSchedules"
}

// FeatureFlags is a typed snapshot of the boolean application settings,
// read once per evaluation pass. The zero value has everything disabled.
type FeatureFlags struct {
	MeteredBillingEnabled bool
	Frequencies           map[Frequency]bool
	MissingEmail          bool
	SuccessEmail          bool
	FailureEmail          bool
}

// ForFrequency reports whether schedules of f are enabled. Unknown
// frequencies are never enabled.
func (f FeatureFlags) ForFrequency(freq Frequency) bool {
	if !freq.Known() {
		return false
	}
	return f.Frequencies[freq]
}

// NotifyOutcome reports whether an email should follow an outcome of kind k.
func (f FeatureFlags) NotifyOutcome(k OutcomeKind) bool {
	if k == OutcomeAccepted {
		return f.SuccessEmail
	}
	return f.FailureEmail
}
