package progress

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/soyYisus/jaak-kyc-demo/internal/embed"
)

type pushed struct {
	kind    Kind
	payload any
}

type recordingSink struct {
	events []pushed
}

func (r *recordingSink) Push(kind Kind, payload any) {
	r.events = append(r.events, pushed{kind, payload})
}

func (r *recordingSink) last() pushed {
	return r.events[len(r.events)-1]
}

type BoardSuite struct {
	suite.Suite
	sink  *recordingSink
	board *Board
	now   time.Time
}

func TestBoardSuite(t *testing.T) {
	suite.Run(t, new(BoardSuite))
}

func (s *BoardSuite) SetupTest() {
	s.sink = &recordingSink{}
	s.now = time.Date(2025, 6, 9, 23, 30, 0, 0, time.UTC)
	s.board = NewBoard(s.sink, WithClock(func() time.Time { return s.now }), WithMaxLogs(3))
}

func (s *BoardSuite) TestInitialState() {
	snap := s.board.Snapshot()
	s.Equal("Waiting for the flow to start...", snap.Progress.Text)
	s.Empty(snap.Logs)
	s.Empty(snap.Results)
	s.False(snap.Active)
}

func (s *BoardSuite) TestLogIsBounded() {
	for _, m := range []string{"a", "b", "c", "d"} {
		s.board.Log(embed.LevelInfo, m)
	}

	logs := s.board.Snapshot().Logs
	s.Require().Len(logs, 3)
	s.Equal("b", logs[0].Message)
	s.Equal(s.now, logs[2].Time)
	s.Equal(pushed{KindLog, LogEntry{Time: s.now, Level: embed.LevelInfo, Message: "d"}}, s.sink.last())
}

func (s *BoardSuite) TestClearLogs() {
	s.board.Log(embed.LevelError, "boom")
	s.board.ClearLogs()

	logs := s.board.Snapshot().Logs
	s.Require().Len(logs, 1)
	s.Equal("Logs cleared", logs[0].Message)
	s.Equal(KindLogs, s.sink.last().kind)
}

func (s *BoardSuite) TestProgress() {
	s.board.Progress(embed.Progress{Percent: 75, Completed: []string{"A", "B", "C"}, Total: 4})

	v := s.board.Snapshot().Progress
	s.Equal(75.0, v.Percent)
	s.Equal("Progress: 3/4 steps completed (latest: A, B, C)", v.Text)
	s.Equal(pushed{KindProgress, v}, s.sink.last())
}

func (s *BoardSuite) TestResultsAndActive() {
	s.board.Results(map[string]json.RawMessage{"OTO": json.RawMessage(`{"similarity":90}`)})
	s.board.FlowActive(true)

	snap := s.board.Snapshot()
	s.True(snap.Active)
	s.JSONEq(`{"similarity":90}`, string(snap.Results["OTO"]))
	s.Equal(pushed{KindActive, true}, s.sink.last())
}

func (s *BoardSuite) TestExport() {
	s.Run("empty results are refused with a warning", func() {
		_, err := s.board.Export(s.now)
		s.ErrorIs(err, ErrNoResults)
		s.Equal(pushed{KindNotify, Notification{Level: embed.LevelWarning, Message: "No data to export"}}, s.sink.last())
	})

	s.Run("results export as indented JSON", func() {
		s.board.Results(map[string]json.RawMessage{"A": json.RawMessage(`{"x":1}`)})

		exp, err := s.board.Export(s.now)
		s.Require().NoError(err)
		s.Equal("kyc-results-2025-06-09.json", exp.FileName)
		s.Equal("{\n  \"A\": {\n    \"x\": 1\n  }\n}", string(exp.Body))
	})
}

func TestRender(t *testing.T) {
	v := Render(embed.Progress{Percent: 100, Completed: []string{"A", "B", "C", "D", "E"}, Total: 5})
	assert.Equal(t, []string{"C", "D", "E"}, v.Recent)
	assert.Equal(t, "Progress: 5/5 steps completed (latest: C, D, E)", v.Text)

	v = Render(embed.Progress{Total: 3})
	assert.Equal(t, "Waiting for the flow to start...", v.Text)
	assert.NotNil(t, v.Recent)
}

func TestExportFileNameUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC-6", -6*3600)
	assert.Equal(t, "kyc-results-2025-01-02.json", ExportFileName(time.Date(2025, 1, 1, 20, 0, 0, 0, loc)))
}

func TestNilSink(t *testing.T) {
	b := NewBoard(nil)
	require.NotPanics(t, func() {
		b.Log(embed.LevelInfo, "x")
		b.Notify(embed.LevelInfo, "x")
		b.FlowActive(true)
	})
}
