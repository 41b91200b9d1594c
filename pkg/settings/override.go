package settings

import "context"

// OverrideSource loads from Base and replaces the provider and model when
// they are set. Credentials always come from Base.
type OverrideSource struct {
	Base     Source
	Provider string
	Model    string
}

// Load implements Source.
func (s OverrideSource) Load(ctx context.Context) (Settings, error) {
	loaded, err := s.Base.Load(ctx)
	if err != nil {
		return Settings{}, err
	}
	if s.Provider != "" {
		loaded.AgentProvider = s.Provider
	}
	if s.Model != "" {
		loaded.AgentModel = s.Model
	}
	return loaded, nil
}
