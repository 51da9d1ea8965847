package llm

import "strings"

// Router maps task complexity to a model name.
type Router struct {
	SimpleModel   string
	StandardModel string
	ComplexModel  string
}

// DefaultRouter returns the OpenAI tiering used when nothing is configured.
func DefaultRouter() Router {
	return Router{
		SimpleModel:   "gpt-4o-mini",
		StandardModel: "gpt-4o",
		ComplexModel:  "gpt-4o",
	}
}

// ModelFor returns the model for c. Missing tiers fall back to the standard model.
func (r Router) ModelFor(c Complexity) string {
	var m string
	switch c {
	case Simple:
		m = r.SimpleModel
	case Complex:
		m = r.ComplexModel
	default:
		m = r.StandardModel
	}
	if strings.TrimSpace(m) == "" {
		return r.StandardModel
	}
	return m
}

// ProviderDefaults returns a Router with sensible models for provider.
func ProviderDefaults(provider string) Router {
	switch provider {
	case "anthropic":
		return Router{
			SimpleModel:   "claude-3-5-haiku-latest",
			StandardModel: "claude-sonnet-4-20250514",
			ComplexModel:  "claude-sonnet-4-20250514",
		}
	case "gemini", "google":
		return Router{
			SimpleModel:   "gemini-2.5-flash",
			StandardModel: "gemini-2.5-flash",
			ComplexModel:  "gemini-2.5-pro",
		}
	default:
		return DefaultRouter()
	}
}

// Override replaces tiers that are set in o.
func (r Router) Override(o Router) Router {
	if o.SimpleModel != "" {
		r.SimpleModel = o.SimpleModel
	}
	if o.StandardModel != "" {
		r.StandardModel = o.StandardModel
	}
	if o.ComplexModel != "" {
		r.ComplexModel = o.ComplexModel
	}
	return r
}
