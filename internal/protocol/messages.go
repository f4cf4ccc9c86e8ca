package protocol

import "wanbingo.sim/internal/sim/runner"

// SUBSCRIBE (observer -> server)
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	IncludeScores   bool   `json:"include_scores,omitempty"`
}

// WEEK (server -> observer), one per completed week.
type WeekMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	RunID           string    `json:"run_id"`
	Week            int       `json:"week"`
	Games           int       `json:"games"`
	Wins            int       `json:"wins"`
	Losses          int       `json:"losses"`
	MeanFinal       float64   `json:"mean_final"`
	ConfirmedCount  int       `json:"confirmed_count"`
	FinalScores     []float64 `json:"final_scores,omitempty"`
}

// DONE (server -> observer), sent once when the run ends.
type DoneMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	RunID           string  `json:"run_id"`
	Weeks           int     `json:"weeks"`
	TotalGames      int     `json:"total_games"`
	TotalWins       int     `json:"total_wins"`
	TotalLosses     int     `json:"total_losses"`
	MeanFinal       float64 `json:"mean_final"`
	WinRate         float64 `json:"win_rate"`
	ErrorCode       string  `json:"error_code,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// BootstrapResponse is served over plain HTTP so a late observer can catch up.
type BootstrapResponse struct {
	ProtocolVersion string   `json:"protocol_version"`
	RunID           string   `json:"run_id"`
	WeeksPlanned    int      `json:"weeks_planned"`
	TilesDigest     string   `json:"tiles_digest"`
	Latest          *WeekMsg `json:"latest,omitempty"`
	Done            *DoneMsg `json:"done,omitempty"`
}

// NewWeekMsg builds a WEEK message; scores are included only on request.
func NewWeekMsg(e runner.WeekLogEntry, withScores bool) WeekMsg {
	m := WeekMsg{
		Type:            TypeWeek,
		ProtocolVersion: Version,
		RunID:           e.RunID,
		Week:            e.Week,
		Games:           e.Games,
		Wins:            e.Wins,
		Losses:          e.Losses,
		MeanFinal:       e.MeanFinal,
		ConfirmedCount:  e.ConfirmedCount,
	}
	if withScores {
		m.FinalScores = e.FinalScores
	}
	return m
}

func NewDoneMsg(rep runner.Report, runErr error) DoneMsg {
	s := rep.Summary
	m := DoneMsg{
		Type:            TypeDone,
		ProtocolVersion: Version,
		RunID:           rep.RunID,
		Weeks:           s.Weeks,
		TotalGames:      s.TotalGames,
		TotalWins:       s.TotalWins,
		TotalLosses:     s.TotalLosses,
		MeanFinal:       s.MeanFinal,
		WinRate:         s.WinRate,
	}
	if runErr != nil {
		m.ErrorCode = CodeFor(runErr)
		m.Error = runErr.Error()
	}
	return m
}
