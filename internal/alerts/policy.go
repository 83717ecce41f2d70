package alerts

// Policy is the delivery profile of a category.
type Policy struct {
	Priority int   `json:"priority"`
	Sound    Sound `json:"sound"`
	ThreadID int   `json:"thread_id,omitempty"`
}

// Policies maps each category to its delivery profile.
type Policies map[Category]Policy

// DefaultPolicies returns the built-in profile of every category.
func DefaultPolicies() Policies {
	return Policies{
		CategoryLocal:   {Priority: 5, Sound: SoundDefault},
		CategoryWeather: {Priority: 6, Sound: SoundAlarm},
		CategorySeismic: {Priority: 9, Sound: SoundSiren},
		CategoryFlood:   {Priority: 8, Sound: SoundSiren},
		CategoryNDMA:    {Priority: 8, Sound: SoundAlarm},
	}
}

// Merge returns a copy of p with the non-zero fields of over applied.
// A nil priority in over keeps the default.
func (p Policies) Merge(cat Category, priority *int, sound Sound, threadID int) Policies {
	out := make(Policies, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	cur := out[cat]
	if priority != nil {
		cur.Priority = clampPriority(*priority)
	}
	if sound != "" {
		cur.Sound = sound
	}
	if threadID != 0 {
		cur.ThreadID = threadID
	}
	out[cat] = cur
	return out
}

// Resolve returns the profile of cat adjusted for sev.
func (p Policies) Resolve(cat Category, sev Severity) Policy {
	pol, ok := p[cat]
	if !ok {
		pol = DefaultPolicies()[cat]
	}
	if pol.Sound == "" {
		pol.Sound = SoundDefault
	}
	pol.Priority = clampPriority(pol.Priority + severityBoost(sev))
	return pol
}

func severityBoost(sev Severity) int {
	switch sev {
	case SeverityLow:
		return -2
	case SeverityHigh:
		return 1
	case SeverityCritical:
		return 2
	}
	return 0
}

func clampPriority(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 10:
		return 10
	}
	return v
}

func channelName(cat Category) string {
	switch cat {
	case CategoryLocal:
		return "Reminders"
	case CategoryWeather:
		return "Weather alerts"
	case CategorySeismic:
		return "Earthquake alerts"
	case CategoryFlood:
		return "Flood alerts"
	case CategoryNDMA:
		return "NDMA advisories"
	}
	return string(cat)
}

// Channels returns one channel per category in display order.
func (p Policies) Channels() []Channel {
	out := make([]Channel, 0, len(Categories))
	for _, cat := range Categories {
		pol := p.Resolve(cat, "")
		out = append(out, Channel{
			Category: cat,
			Name:     channelName(cat),
			Priority: pol.Priority,
			Sound:    pol.Sound,
			ThreadID: pol.ThreadID,
		})
	}
	return out
}
