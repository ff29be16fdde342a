// Command simulator plays the role of a peer node: it posts synthetic alert
// notifications at a fixed interval to exercise a node's receive path, and
// optionally polls the target's alert history to verify the records landed.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hardwatch/hardwatch/pkg/models"
)

const (
	defaultIntervalMs = 5000
	defaultNodeURL    = "http://localhost:3030"
)

var severities = []models.RuleSeverity{
	models.RuleSeverityInfo,
	models.RuleSeverityWarning,
	models.RuleSeverityError,
	models.RuleSeverityCritical,
}

func main() {
	nodeURL := getEnv("NODE_URL", defaultNodeURL)
	intervalMs, _ := strconv.Atoi(getEnv("INTERVAL_MS", fmt.Sprintf("%d", defaultIntervalMs)))
	checkAlerts, _ := strconv.ParseBool(getEnv("CHECK_ALERTS", "true"))

	simulatedID := uuid.New().String()
	simulatedName := getEnv("SIMULATOR_NAME", "simulated-peer")
	client := &http.Client{Timeout: 5 * time.Second}

	logrus.Infof("Simulating peer %s (%s) against %s every %d ms", simulatedName, simulatedID, nodeURL, intervalMs)

	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()

	sent := 0
	for range ticker.C {
		notification := models.AlertNotification{
			SourceNodeID:   simulatedID,
			SourceNodeName: simulatedName,
			RuleID:         "sim_cpu_high",
			RuleName:       "Simulated CPU high load",
			Severity:       severities[rand.Intn(len(severities))],
			Message:        fmt.Sprintf("%s: cpu_usage=%.1f > 80.0", simulatedName, 80+rand.Float64()*20),
			Timestamp:      time.Now(),
		}
		if err := postNotification(client, nodeURL, &notification); err != nil {
			logrus.Errorf("Failed to deliver notification: %v", err)
			continue
		}
		sent++
		logrus.Infof("Delivered %s notification #%d", notification.Severity, sent)

		if checkAlerts && sent%5 == 0 {
			reportAlertCount(client, nodeURL)
		}
	}
}

func postNotification(client *http.Client, nodeURL string, notification *models.AlertNotification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	resp, err := client.Post(nodeURL+"/alerts/notify", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("node responded %d", resp.StatusCode)
	}
	return nil
}

func reportAlertCount(client *http.Client, nodeURL string) {
	resp, err := client.Get(nodeURL + "/api/alerts?unacknowledged=true")
	if err != nil {
		logrus.Warnf("Failed to query alert history: %v", err)
		return
	}
	defer resp.Body.Close()

	var records []models.AlertRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		logrus.Warnf("Failed to decode alert history: %v", err)
		return
	}
	logrus.Infof("Target node has %d unacknowledged alerts", len(records))
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
