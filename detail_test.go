package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const segmentsFixture = `{
  "data": {
    "segments": [
      {
        "id": "12345",
        "metadata": {"name": "Tower Grove Loop"},
        "measurements": {"distance": 1232.4},
        "totalEfforts": 26,
        "leaderboards": [
          {
            "leaderboardEfforts": [
              {
                "athlete": {"firstName": "Alex", "lastName": "Rivera"},
                "activity": {"id": 998877},
                "timing": {"elapsedTime": 135}
              }
            ]
          }
        ]
      },
      {
        "id": 67890,
        "metadata": {"name": "Unridden Alley"},
        "measurements": {"distance": 640},
        "totalEfforts": 0,
        "leaderboards": []
      }
    ]
  }
}`

func TestIdentifierUnmarshal(t *testing.T) {
	var id identifier
	require.NoError(t, json.Unmarshal([]byte(`123`), &id))
	assert.Equal(t, identifier(123), id)

	require.NoError(t, json.Unmarshal([]byte(`"456"`), &id))
	assert.Equal(t, identifier(456), id)

	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &id))
}

func TestSegmentDetails(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, segmentsFixture)
	}))
	defer srv.Close()

	cfg := defaultConfig()
	cfg.BaseURL = "https://www.strava.com"
	cfg.GraphQLURL = srv.URL
	cfg.Cookie = "_session=abc123"
	cfg.RequestDelayMS = 1
	client, err := newAPIClient(cfg)
	require.NoError(t, err)

	got, err := client.segmentDetails(context.Background(), []int64{12345, 67890})
	require.NoError(t, err)

	var req graphqlRequest
	require.NoError(t, json.Unmarshal(gotBody, &req))
	assert.Equal(t, "Segments", req.OperationName)
	assert.Contains(t, req.Query, "leaderboardEfforts")
	assert.Equal(t, []any{"Kom"}, req.Variables["leaderboardTypes"])

	// The segment without leaderboard efforts has no leader to beat.
	require.Len(t, got, 1)
	d := got[0]
	assert.Equal(t, int64(12345), d.ID)
	assert.Equal(t, "Tower Grove Loop", d.Name)
	assert.Equal(t, 1232.4, d.DistanceM)
	assert.Equal(t, 26, d.AttemptCount)
	assert.Equal(t, "Alex Rivera", d.LeaderName)
	assert.Equal(t, 135, d.LeaderTimeS)
	assert.Equal(t, int64(998877), d.LeaderActivityID)
	assert.Equal(t, "https://www.strava.com/segments/12345", d.URL)
	assert.Nil(t, d.LeaderHR)
	assert.Nil(t, d.LeaderPower)
}

func TestSegmentDetailsGraphQLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errors":[{"message":"rate limited"}]}`)
	}))
	defer srv.Close()

	cfg := defaultConfig()
	cfg.GraphQLURL = srv.URL
	cfg.RequestDelayMS = 1
	client, err := newAPIClient(cfg)
	require.NoError(t, err)

	_, err = client.segmentDetails(context.Background(), []int64{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestFetchDetailsSkipsFailedBatch(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, segmentsFixture)
	}))
	defer srv.Close()

	cfg := defaultConfig()
	cfg.GraphQLURL = srv.URL
	cfg.RequestDelayMS = 1
	client, err := newAPIClient(cfg)
	require.NoError(t, err)

	// 60 ids split into two batches; the first batch fails and is skipped.
	ids := make([]int64, 60)
	for i := range ids {
		ids[i] = int64(i + 1)
	}

	got, err := fetchDetails(context.Background(), client, ids, newLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, got, 1)
	assert.Equal(t, int64(12345), got[0].ID)
}

func TestFetchDetailsAuthFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := defaultConfig()
	cfg.GraphQLURL = srv.URL
	cfg.RequestDelayMS = 1
	client, err := newAPIClient(cfg)
	require.NoError(t, err)

	_, err = fetchDetails(context.Background(), client, []int64{1}, newLogger())
	assert.ErrorIs(t, err, errAuthRequired)
}
