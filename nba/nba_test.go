package nba

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"rapture/fetch"
	"rapture/season"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"
)

const trackingBody = `{"resource":"leaguedashptstats","resultSets":[{"name":"LeagueDashPtStats",
"headers":["PLAYER_ID","PLAYER_NAME","TEAM_ABBREVIATION","GP","DIST_MILES","AVG_SPEED"],
"rowSet":[[203999,"Nikola Jokic","DEN",10,19.9,4.15],[1629029,"Luka Doncic","DAL",9,18.1,3.9],[1,null,"X",0,0,0]]}]}`

type seenRequest struct {
	URL    url.URL
	Header http.Header
}

type requestLog struct {
	mu   sync.Mutex
	reqs []seenRequest
}

func (l *requestLog) all() []seenRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]seenRequest(nil), l.reqs...)
}

func newTestClient(t *testing.T, status int, body string) (*Client, *requestLog) {
	log := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.mu.Lock()
		log.reqs = append(log.reqs, seenRequest{URL: *r.URL, Header: r.Header.Clone()})
		log.mu.Unlock()
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, rate.NewLimiter(rate.Inf, 1), 5*time.Second, zaptest.NewLogger(t)), log
}

func trackingRequest(gt season.GameType, ts season.Timestamp) fetch.Request {
	it := fetch.NewItem(season.NBA, TagTracking, "", "", gt, ts, "SpeedDistance", "u")
	return fetch.Request{Item: it, Window: it.Window}
}

func TestTracking(t *testing.T) {
	c, seen := newTestClient(t, http.StatusOK, trackingBody)
	recs, err := NewTracking(c).Fetch(context.Background(), trackingRequest(season.Playoffs, "20220501000000"))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Nikola Jokic", recs[0].Name)
	assert.Equal(t, "DEN", recs[0].Fields["TEAM_ABBREVIATION"])
	assert.InDelta(t, 19.9, recs[0].Fields["DIST_MILES"], 1e-9)

	reqs := seen.all()
	require.Len(t, reqs, 1)
	r := reqs[0]
	assert.Equal(t, "/leaguedashptstats", r.URL.Path)
	assert.Equal(t, "https://www.nba.com/", r.Header.Get("Referer"))
	q := r.URL.Query()
	assert.Equal(t, "04/16/2022", q.Get("DateFrom"))
	assert.Equal(t, "05/01/2022", q.Get("DateTo"))
	assert.Equal(t, "Playoffs", q.Get("SeasonType"))
	assert.Equal(t, "2021-22", q.Get("Season"))
	assert.Equal(t, "SpeedDistance", q.Get("PtMeasureType"))
	assert.Equal(t, "Totals", q.Get("PerMode"))
	assert.Equal(t, "Player", q.Get("PlayerOrTeam"))
}

func TestTrackingFullSeasonIsPermanent(t *testing.T) {
	c, seen := newTestClient(t, http.StatusOK, trackingBody)
	_, err := NewTracking(c).Fetch(context.Background(), trackingRequest(season.Full, "20220501000000"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedGameType))
	assert.True(t, errors.Is(err, fetch.ErrPermanent))
	assert.Empty(t, seen.all())
}

func TestTrackingEmptyRowSet(t *testing.T) {
	c, _ := newTestClient(t, http.StatusOK, `{"resultSets":[{"headers":["PLAYER_NAME"],"rowSet":[]}]}`)
	recs, err := NewTracking(c).Fetch(context.Background(), trackingRequest(season.Regular, "20211201000000"))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestTrackingFailuresAreTransient(t *testing.T) {
	c, _ := newTestClient(t, http.StatusTooManyRequests, `slow down`)
	_, err := NewTracking(c).Fetch(context.Background(), trackingRequest(season.Regular, "20211201000000"))
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.False(t, errors.Is(err, fetch.ErrPermanent))

	c, _ = newTestClient(t, http.StatusOK, `{"resultSets":[]}`)
	_, err = NewTracking(c).Fetch(context.Background(), trackingRequest(season.Regular, "20211201000000"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, fetch.ErrPermanent))
}

func TestCommonAllPlayers(t *testing.T) {
	c, seen := newTestClient(t, http.StatusOK, `{"resultSets":[{"name":"CommonAllPlayers",
"headers":["PERSON_ID","DISPLAY_LAST_COMMA_FIRST","DISPLAY_FIRST_LAST","ROSTERSTATUS","FROM_YEAR","TO_YEAR","TEAM_ID","TEAM_ABBREVIATION"],
"rowSet":[[1629029,"Doncic, Luka","Luka Doncic",1,"2018","2024",1610612742,"DAL"],[2,"Nobody",null,0,"1990","1991",0,""]]}]}`)
	players, err := c.CommonAllPlayers(context.Background(), "2024-25")
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Nil(t, players[1].DisplayFirstLast)
	assert.Equal(t, "DAL", *players[0].TeamAbbreviation)

	q, err := url.ParseQuery(seen.all()[0].URL.RawQuery)
	require.NoError(t, err)
	assert.Equal(t, "2024-25", q.Get("Season"))

	assert.Equal(t, map[string]string{"Luka Doncic": "1629029"}, Reference(players))
}

func TestSeasonType(t *testing.T) {
	for gt, want := range map[season.GameType]string{
		season.Regular:  "Regular Season",
		season.Playoffs: "Playoffs",
		season.PlayIn:   "PlayIn",
	} {
		got, err := SeasonType(gt)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
