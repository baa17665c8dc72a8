package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/schollz/progressbar/v3"
)

// detailBatchSize caps how many segments one GraphQL query asks for.
const detailBatchSize = 50

// SegmentDetail is one segment's leaderboard record. LeaderHR and
// LeaderPower are nil when the platform has no reading for the leading
// effort; a literal zero would be a real (if implausible) reading.
type SegmentDetail struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	DistanceM        float64 `json:"distance"`
	AttemptCount     int     `json:"total_attempts"`
	LeaderName       string  `json:"leader_name"`
	LeaderTimeS      int     `json:"leader_time"`
	LeaderActivityID int64   `json:"leader_activity_id"`
	LeaderHR         *int    `json:"leader_hr"`
	LeaderPower      *int    `json:"leader_power"`
	PowerVerified    bool    `json:"leader_power_verified"`
	URL              string  `json:"url"`
}

// segmentsQuery asks for metadata, measurements and the KOM leaderboard in
// one round trip per batch.
const segmentsQuery = `
query Segments(
    $segmentIds: [Identifier!]!
    $leaderboardTypes: [SegmentLeaderTypeInput!]
) {
    segments(segmentIds: $segmentIds) {
        id
        metadata {
            name
        }
        measurements {
            distance
        }
        totalEfforts
        leaderboards(leaderboardTypes: $leaderboardTypes) {
            leaderboardEfforts {
                athlete {
                    firstName
                    lastName
                }
                activity {
                    id
                }
                timing {
                    elapsedTime
                }
            }
        }
    }
}
`

// identifier tolerates the API returning ids either bare or quoted.
type identifier int64

func (id *identifier) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid identifier %q", b)
	}
	*id = identifier(n)
	return nil
}

type graphqlRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName"`
}

type segmentsResponse struct {
	Data struct {
		Segments []segmentNode `json:"segments"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type segmentNode struct {
	ID       identifier `json:"id"`
	Metadata struct {
		Name string `json:"name"`
	} `json:"metadata"`
	Measurements struct {
		Distance float64 `json:"distance"`
	} `json:"measurements"`
	TotalEfforts int `json:"totalEfforts"`
	Leaderboards []struct {
		LeaderboardEfforts []struct {
			Athlete struct {
				FirstName string `json:"firstName"`
				LastName  string `json:"lastName"`
			} `json:"athlete"`
			Activity struct {
				ID identifier `json:"id"`
			} `json:"activity"`
			Timing struct {
				ElapsedTime int `json:"elapsedTime"`
			} `json:"timing"`
		} `json:"leaderboardEfforts"`
	} `json:"leaderboards"`
}

// segmentDetails fetches leaderboard detail for one batch of segment ids.
func (c *apiClient) segmentDetails(ctx context.Context, segmentIDs []int64) ([]SegmentDetail, error) {
	req := graphqlRequest{
		Query: segmentsQuery,
		Variables: map[string]any{
			"segmentIds":       segmentIDs,
			"leaderboardTypes": []string{"Kom"},
		},
		OperationName: "Segments",
	}

	var resp segmentsResponse
	if err := c.postJSON(ctx, c.graphqlURL, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("graphql: %s", resp.Errors[0].Message)
	}

	out := make([]SegmentDetail, 0, len(resp.Data.Segments))
	for _, node := range resp.Data.Segments {
		d, ok := nodeToDetail(c.baseURL, node)
		if !ok {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// nodeToDetail maps a GraphQL segment node to a SegmentDetail. Segments
// without a recorded leaderboard effort have no leader to beat and are
// dropped.
func nodeToDetail(baseURL string, node segmentNode) (SegmentDetail, bool) {
	if len(node.Leaderboards) == 0 || len(node.Leaderboards[0].LeaderboardEfforts) == 0 {
		return SegmentDetail{}, false
	}
	leader := node.Leaderboards[0].LeaderboardEfforts[0]
	return SegmentDetail{
		ID:               int64(node.ID),
		Name:             node.Metadata.Name,
		DistanceM:        node.Measurements.Distance,
		AttemptCount:     node.TotalEfforts,
		LeaderName:       leader.Athlete.FirstName + " " + leader.Athlete.LastName,
		LeaderTimeS:      leader.Timing.ElapsedTime,
		LeaderActivityID: int64(leader.Activity.ID),
		URL:              fmt.Sprintf("%s/segments/%d", baseURL, int64(node.ID)),
	}, true
}

// fetchDetails fetches leaderboard detail for all ids in sequential batches.
// A failed batch is logged and skipped; the rest of the ids still run.
func fetchDetails(ctx context.Context, client *apiClient, ids []int64, log *logger) ([]SegmentDetail, error) {
	batches := (len(ids) + detailBatchSize - 1) / detailBatchSize
	bar := progressbar.Default(int64(batches), "Fetching details")
	defer func() { _ = bar.Finish() }()

	var out []SegmentDetail
	for i := 0; i < len(ids); i += detailBatchSize {
		end := min(i+detailBatchSize, len(ids))
		batch, err := client.segmentDetails(ctx, ids[i:end])
		if err != nil {
			if isAuthError(err) {
				return nil, errAuthRequired
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.warnf("detail batch %d-%d failed: %v", i, end-1, err)
			_ = bar.Add(1)
			continue
		}
		out = append(out, batch...)
		_ = bar.Add(1)
	}
	return out, nil
}
