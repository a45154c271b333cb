package types

// Rating is the ordinal category derived from fixed score bands.
type Rating string

const (
	RatingExcellent      Rating = "excellent"
	RatingGood           Rating = "good"
	RatingFair           Rating = "fair"
	RatingPoor           Rating = "poor"
	RatingNotRecommended Rating = "not_recommended"
)

// RatingForScore maps a clamped 0-100 score onto its rating band.
func RatingForScore(score int) Rating {
	switch {
	case score >= 80:
		return RatingExcellent
	case score >= 65:
		return RatingGood
	case score >= 50:
		return RatingFair
	case score >= 35:
		return RatingPoor
	default:
		return RatingNotRecommended
	}
}

// FactorID identifies one independently-weighted scoring dimension.
type FactorID string

const (
	FactorTemperature   FactorID = "temperature"
	FactorPrecipitation FactorID = "precipitation"
	FactorWind          FactorID = "wind"
	FactorUV            FactorID = "uv"
	FactorVisibility    FactorID = "visibility"
	FactorCloudCover    FactorID = "cloud_cover"
	FactorKpIndex       FactorID = "kp_index"
)

// AlertType categorizes alerts for dedup key derivation and cooldown
// tracking. Types not listed here fall under the generic hourly-keyed
// behavior.
type AlertType string

const (
	AlertTypeAurora        AlertType = "aurora"
	AlertTypeSevereWeather AlertType = "severe_weather"
	AlertTypeDailyForecast AlertType = "daily_forecast"
	AlertTypeConditions    AlertType = "conditions"
)

// WarningSeverity grades severe-weather warnings.
type WarningSeverity string

const (
	SeverityAdvisory WarningSeverity = "advisory"
	SeverityWatch    WarningSeverity = "watch"
	SeverityWarning  WarningSeverity = "warning"
	SeverityExtreme  WarningSeverity = "extreme"
)
