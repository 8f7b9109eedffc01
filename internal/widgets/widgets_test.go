package widgets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vdavid/vmail-lite/internal/config"
)

const ratesJSON = `{
	"Update_Date": "2026-10-18 10:00:00",
	"USD": {"Alış": "41,7520", "Satış": "41,8010"},
	"EUR": {"Alış": "48,6000", "Satış": "48,7125"},
	"gram-altin": {"Alış": 5500.12, "Satış": 5512.5}
}`

const weatherJSON = `{
	"current_condition": [{
		"temp_C": "18",
		"humidity": "72",
		"weatherDesc": [{"value": "Partly cloudy"}]
	}]
}`

const newsJSON = `{
	"status": "ok",
	"items": [
		{"title": "Bir"}, {"title": "İki"}, {"title": "Üç"},
		{"title": "Dört"}, {"title": "Beş"}, {"title": "Altı"}
	]
}`

func newUpstream(t *testing.T, fail map[string]bool) (*httptest.Server, config.Widgets) {
	t.Helper()

	reply := func(path, body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if fail[path] {
				http.Error(w, "upstream down", http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/today.json", reply("/today.json", ratesJSON))
	mux.HandleFunc("/weather/Istanbul", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "j1", r.URL.Query().Get("format"))
		reply("/weather", weatherJSON)(w, r)
	})
	mux.HandleFunc("/news", reply("/news", newsJSON))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, config.Widgets{
		RatesURL:   srv.URL + "/today.json",
		WeatherURL: srv.URL + "/weather/",
		NewsURL:    srv.URL + "/news",
		City:       "Istanbul",
		Timeout:    2 * time.Second,
	}
}

func TestAll(t *testing.T) {
	_, cfg := newUpstream(t, nil)

	data := NewAggregator(cfg).All(context.Background())

	require.Len(t, data.Rates, 3)
	assert.Equal(t, Rate{Symbol: "$", Name: "USD/TRY", Value: "41,8010", Color: "#1e293b"}, data.Rates[0])
	assert.Equal(t, "48,7125", data.Rates[1].Value)
	assert.Equal(t, "5512.5", data.Rates[2].Value, "numeric prices are accepted too")

	require.NotNil(t, data.Weather)
	assert.Equal(t, Weather{Temp: "18", Desc: "Parçalı Bulutlu", Humidity: "72", City: "İstanbul"}, *data.Weather)

	assert.Equal(t, []string{"Bir", "İki", "Üç", "Dört", "Beş"}, data.News)
}

func TestAllFailsSoftPerSource(t *testing.T) {
	_, cfg := newUpstream(t, map[string]bool{"/today.json": true, "/weather": true})

	data := NewAggregator(cfg).All(context.Background())

	assert.NotNil(t, data.Rates)
	assert.Empty(t, data.Rates)
	assert.Nil(t, data.Weather)
	assert.Len(t, data.News, 5, "a healthy source is unaffected by the others")
}

func TestAllWithUnreachableUpstream(t *testing.T) {
	cfg := config.Widgets{
		RatesURL:   "http://127.0.0.1:1/today.json",
		WeatherURL: "http://127.0.0.1:1",
		NewsURL:    "http://127.0.0.1:1/news",
		City:       "Ankara",
	}

	data := NewAggregator(cfg).All(context.Background())

	assert.Equal(t, Data{Rates: []Rate{}, News: []string{}}, data)
}

func TestRatesMissingKeysDefaultToZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"USD": {"Satış": "41,80"}}`))
	}))
	defer srv.Close()

	rates, err := NewAggregator(config.Widgets{RatesURL: srv.URL}).Rates(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "41,80", rates[0].Value)
	assert.Equal(t, "0", rates[1].Value)
	assert.Equal(t, "0", rates[2].Value)
}

func TestWeatherUntranslatedDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"current_condition":[{"temp_C":"3","humidity":"90","weatherDesc":[{"value":"Heavy snow"}]}]}`))
	}))
	defer srv.Close()

	weather, err := NewAggregator(config.Widgets{WeatherURL: srv.URL}).Weather(context.Background(), "Erzurum")

	require.NoError(t, err)
	assert.Equal(t, "Heavy snow", weather.Desc)
	assert.Equal(t, "Erzurum", weather.City)
}

func TestNewsRejectsFailedFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"rate limited"}`))
	}))
	defer srv.Close()

	_, err := NewAggregator(config.Widgets{NewsURL: srv.URL}).News(context.Background())

	assert.Error(t, err)
}
