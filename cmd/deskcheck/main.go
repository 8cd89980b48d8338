// Command deskcheck checks the moderation API and the realtime socket
// with the desk's configuration and prints what it sees.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/park285/goban-desk/internal/config"
	"github.com/park285/goban-desk/internal/realtime"
	"github.com/park285/goban-desk/internal/reports"
	"github.com/park285/goban-desk/internal/requests"
	"github.com/park285/goban-desk/internal/roster"
	"github.com/park285/goban-desk/pkg/modapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	headers := func() map[string]string {
		m := map[string]string{"X-User-Id": strconv.FormatInt(cfg.UserID, 10)}
		if cfg.AuthToken != "" {
			m["Authorization"] = "Bearer " + cfg.AuthToken
		}
		return m
	}

	client := requests.NewClient(cfg.APIBaseURL,
		requests.WithHeaderProvider(headers),
		requests.WithTimeout(8*time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var page modapi.PlayerPage
	if err := client.Get(ctx, roster.ModeratorsPath, &page); err != nil {
		log.Printf("moderators error: %v", err)
	} else {
		log.Printf("moderators ok: count=%d first_page=%d", page.Count, len(page.Results))
	}

	ws := realtime.NewSocket(cfg.RealtimeURL, 5, time.Second)
	ws.SetHeaderProvider(headers)
	ws.OnConnected(func() { log.Printf("realtime state: %s", ws.State()) })
	ws.On(reports.EventIncidentReport, func(data json.RawMessage) {
		var r modapi.Report
		if err := json.Unmarshal(data, &r); err != nil {
			log.Printf("incident-report decode error: %v", err)
			return
		}
		fmt.Printf("incident-report id=%d type=%s state=%s\n", r.ID, r.ReportType, r.State)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := ws.Connect(cctx); err != nil {
		log.Printf("realtime connect error: %v", err)
		return
	}

	// watch pushes for a short window
	t := time.NewTimer(10 * time.Second)
	<-t.C
	_ = ws.Close(context.Background())
	log.Printf("realtime state: %s", ws.State())
}
