package refiner

import (
	"textrefine/internal/chat"
	"textrefine/internal/models"
)

// fallbackPlan runs the continuation flow with primary options and, when the
// first attempt fails in a way shouldFallback accepts, once more with secondary.
type fallbackPlan struct {
	primary   models.RequestOptions
	secondary *models.RequestOptions
}

// ShouldFallback reports whether a failed streaming attempt may be repeated
// without streaming. Only malformed or empty streams qualify; cancellations,
// HTTP failures and everything else surface unchanged.
func ShouldFallback(err error) bool {
	return err != nil && chat.KindOf(err) == chat.KindStreamFormat
}

func refinePlan() fallbackPlan {
	secondary := models.RequestOptions{Stream: false, Temperature: refineTemperature}
	return fallbackPlan{
		primary:   models.RequestOptions{Stream: true, Temperature: refineTemperature},
		secondary: &secondary,
	}
}

func translatePlan() fallbackPlan {
	return fallbackPlan{
		primary: models.RequestOptions{Stream: false, Temperature: translateTemperature, MaxTokens: translateMaxTokens},
	}
}
