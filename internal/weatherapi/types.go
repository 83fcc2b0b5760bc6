package weatherapi

// Response is the upstream payload shared by the forecast.json and
// current.json endpoints. Forecast is absent on current.json responses.
type Response struct {
	Location Location  `json:"location"`
	Current  Current   `json:"current"`
	Forecast *Forecast `json:"forecast,omitempty"`
}

// Location is the upstream location block.
type Location struct {
	Name           string  `json:"name"`
	Country        string  `json:"country"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	LocaltimeEpoch int64   `json:"localtime_epoch"`
	Localtime      string  `json:"localtime"`
}

// Current carries current conditions with both metric and imperial values.
type Current struct {
	TempC            float64   `json:"temp_c"`
	TempF            float64   `json:"temp_f"`
	FeelsLikeC       float64   `json:"feelslike_c"`
	FeelsLikeF       float64   `json:"feelslike_f"`
	Condition        Condition `json:"condition"`
	Humidity         int       `json:"humidity"`
	WindKph          float64   `json:"wind_kph"`
	WindMph          float64   `json:"wind_mph"`
	WindDir          string    `json:"wind_dir"`
	PressureMb       float64   `json:"pressure_mb"`
	VisKm            float64   `json:"vis_km"`
	UV               float64   `json:"uv"`
	LastUpdatedEpoch int64     `json:"last_updated_epoch"`
}

// Condition is the upstream condition descriptor.
type Condition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
	Code int    `json:"code"`
}

// Forecast wraps the per-day forecast list.
type Forecast struct {
	ForecastDay []ForecastDay `json:"forecastday"`
}

// ForecastDay is one upstream forecast day with its day and astro blocks.
type ForecastDay struct {
	Date      string `json:"date"`
	DateEpoch int64  `json:"date_epoch"`
	Day       Day    `json:"day"`
	Astro     Astro  `json:"astro"`
}

// Day is the daily summary block.
type Day struct {
	MaxTempC          float64   `json:"maxtemp_c"`
	MaxTempF          float64   `json:"maxtemp_f"`
	MinTempC          float64   `json:"mintemp_c"`
	MinTempF          float64   `json:"mintemp_f"`
	AvgTempC          float64   `json:"avgtemp_c"`
	AvgTempF          float64   `json:"avgtemp_f"`
	Condition         Condition `json:"condition"`
	DailyChanceOfRain int       `json:"daily_chance_of_rain"`
	DailyChanceOfSnow int       `json:"daily_chance_of_snow"`
	AvgHumidity       int       `json:"avghumidity"`
	UV                float64   `json:"uv"`
}

// Astro is the sunrise/sunset block.
type Astro struct {
	Sunrise  string `json:"sunrise"`
	Sunset   string `json:"sunset"`
	Moonrise string `json:"moonrise"`
	Moonset  string `json:"moonset"`
}
