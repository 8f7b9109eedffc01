// Package widgets fetches the dashboard side data: exchange rates, weather
// and headlines. Every source fails soft, so the dashboard always renders.
package widgets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vdavid/vmail-lite/internal/config"
)

const maxHeadlines = 5

// Rate is one exchange rate row.
type Rate struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Value  string `json:"value"`
	Color  string `json:"color"`
}

type Weather struct {
	Temp     string `json:"temp"`
	Desc     string `json:"desc"`
	Humidity string `json:"humidity"`
	City     string `json:"city"`
}

// Data is the combined widget payload. Rates and News are empty, and
// Weather is nil, when their source failed.
type Data struct {
	Rates   []Rate   `json:"rates"`
	Weather *Weather `json:"weather"`
	News    []string `json:"news"`
}

var weatherDescriptions = map[string]string{
	"Sunny":                "Açık",
	"Clear":                "Açık",
	"Partly cloudy":        "Parçalı Bulutlu",
	"Cloudy":               "Bulutlu",
	"Overcast":             "Kapalı",
	"Mist":                 "Sisli",
	"Patchy rain possible": "Yer yer yağmurlu",
	"Light rain":           "Hafif Yağmurlu",
	"Rain":                 "Yağmurlu",
}

var cityNames = map[string]string{
	"Istanbul": "İstanbul",
}

type Aggregator struct {
	client *http.Client
	cfg    config.Widgets
}

func NewAggregator(cfg config.Widgets) *Aggregator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Aggregator{
		client: &http.Client{Timeout: timeout},
		cfg:    cfg,
	}
}

// All fetches every source in parallel. It never fails: a source that
// errors is logged and left empty.
func (a *Aggregator) All(ctx context.Context) Data {
	data := Data{Rates: []Rate{}, News: []string{}}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rates, err := a.Rates(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Widgets: failed to fetch exchange rates")
			return nil
		}
		data.Rates = rates
		return nil
	})

	g.Go(func() error {
		weather, err := a.Weather(ctx, a.cfg.City)
		if err != nil {
			log.Warn().Err(err).Str("city", a.cfg.City).Msg("Widgets: failed to fetch weather")
			return nil
		}
		data.Weather = weather
		return nil
	})

	g.Go(func() error {
		news, err := a.News(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Widgets: failed to fetch news")
			return nil
		}
		data.News = news
		return nil
	})

	_ = g.Wait()
	return data
}

// Rates returns USD, EUR and gram gold selling prices in TRY.
func (a *Aggregator) Rates(ctx context.Context) ([]Rate, error) {
	var body map[string]json.RawMessage
	if err := a.getJSON(ctx, a.cfg.RatesURL, &body); err != nil {
		return nil, err
	}

	value := func(key string) string {
		var quote struct {
			Selling flexString `json:"Satış"`
		}
		if err := json.Unmarshal(body[key], &quote); err != nil || quote.Selling == "" {
			return "0"
		}
		return string(quote.Selling)
	}

	return []Rate{
		{Symbol: "$", Name: "USD/TRY", Value: value("USD"), Color: "#1e293b"},
		{Symbol: "€", Name: "EUR/TRY", Value: value("EUR"), Color: "#1e293b"},
		{Symbol: "G", Name: "Altın", Value: value("gram-altin"), Color: "#F59E0B"},
	}, nil
}

// Weather returns the current conditions for city with a Turkish summary.
func (a *Aggregator) Weather(ctx context.Context, city string) (*Weather, error) {
	var body struct {
		CurrentCondition []struct {
			TempC       string `json:"temp_C"`
			Humidity    string `json:"humidity"`
			WeatherDesc []struct {
				Value string `json:"value"`
			} `json:"weatherDesc"`
		} `json:"current_condition"`
	}

	endpoint := strings.TrimRight(a.cfg.WeatherURL, "/") + "/" + url.PathEscape(city) + "?format=j1"
	if err := a.getJSON(ctx, endpoint, &body); err != nil {
		return nil, err
	}
	if len(body.CurrentCondition) == 0 {
		return nil, fmt.Errorf("no current conditions for %s", city)
	}

	current := body.CurrentCondition[0]
	weather := &Weather{
		Temp:     current.TempC,
		Humidity: current.Humidity,
		City:     city,
	}
	if name, ok := cityNames[city]; ok {
		weather.City = name
	}
	if len(current.WeatherDesc) > 0 {
		desc := current.WeatherDesc[0].Value
		weather.Desc = desc
		if translated, ok := weatherDescriptions[desc]; ok {
			weather.Desc = translated
		}
	}

	return weather, nil
}

// News returns up to five current headlines.
func (a *Aggregator) News(ctx context.Context) ([]string, error) {
	var body struct {
		Status string `json:"status"`
		Items  []struct {
			Title string `json:"title"`
		} `json:"items"`
	}
	if err := a.getJSON(ctx, a.cfg.NewsURL, &body); err != nil {
		return nil, err
	}
	if body.Status != "ok" {
		return nil, fmt.Errorf("news feed status %q", body.Status)
	}

	headlines := make([]string, 0, maxHeadlines)
	for _, item := range body.Items {
		if len(headlines) == maxHeadlines {
			break
		}
		headlines = append(headlines, item.Title)
	}
	return headlines, nil
}

func (a *Aggregator) getJSON(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Host)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Host, err)
	}
	return nil
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	*s = flexString(b)
	return nil
}
