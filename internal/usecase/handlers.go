package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"trakii-bot/internal/domain"
)

// fixTimeLayout renders position timestamps the way the bot always has:
// locale-independent US date, 12-hour clock.
const fixTimeLayout = "01/02/2006, 03:04:05 PM"

// matchDevice selects the first device whose name (case-insensitive) or whose
// numeric id appears as a substring of the lower-cased user message.
//
// This is a best-effort heuristic: a message containing two device names
// matches whichever comes first in API response order, which Traccar does not
// guarantee to be stable across calls. That ambiguity is preserved on purpose.
func matchDevice(devices []domain.Device, loweredMessage string) (domain.Device, bool) {
	for _, d := range devices {
		if strings.Contains(loweredMessage, strings.ToLower(d.Name)) ||
			strings.Contains(loweredMessage, strconv.FormatInt(d.ID, 10)) {
			return d, true
		}
	}
	return domain.Device{}, false
}

// latestPosition fetches the device's latest position record. The positions
// endpoint returns a sequence; only the first element is meaningful here.
func (s *TriageService) latestPosition(ctx context.Context, creds domain.Credentials, dev domain.Device) (domain.Position, error) {
	positions, err := s.tracking.Positions(ctx, creds, dev.PositionID)
	if err != nil {
		return domain.Position{}, err
	}
	if len(positions) == 0 {
		return domain.Position{}, fmt.Errorf("usecase: no position for device %d", dev.ID)
	}
	return positions[0], nil
}

func (s *TriageService) handleLocation(ctx context.Context, turn *Turn, creds domain.Credentials) {
	if creds.Empty() {
		turn.append(domain.RoleAssistant, replyNoCredentials)
		return
	}

	devices, err := s.tracking.Devices(ctx, creds)
	if err != nil {
		slog.Error("location: device fetch failed", "err", err)
		turn.append(domain.RoleAssistant, replyLocationError)
		return
	}

	dev, ok := matchDevice(devices, turn.userMessage())
	if !ok {
		turn.append(domain.RoleAssistant, replyDeviceNotFoundLocation)
		return
	}

	pos, err := s.latestPosition(ctx, creds, dev)
	if err != nil {
		slog.Error("location: position fetch failed", "device_id", dev.ID, "err", err)
		turn.append(domain.RoleAssistant, replyLocationError)
		return
	}

	lat := formatCoord(pos.Latitude)
	lon := formatCoord(pos.Longitude)
	turn.append(domain.RoleAssistant, fmt.Sprintf(
		"📍 Ubicación del dispositivo '%s':\nLatitud: %s, Longitud: %s\n[Ver en Google Maps](https://www.google.com/maps?q=%s,%s)",
		dev.Name, lat, lon, lat, lon,
	))
}

func (s *TriageService) handleSpeed(ctx context.Context, turn *Turn, creds domain.Credentials) {
	if creds.Empty() {
		turn.append(domain.RoleAssistant, replyNoCredentials)
		return
	}

	devices, err := s.tracking.Devices(ctx, creds)
	if err != nil {
		slog.Error("speed: device fetch failed", "err", err)
		turn.append(domain.RoleAssistant, replySpeedError)
		return
	}

	dev, ok := matchDevice(devices, turn.userMessage())
	if !ok {
		turn.append(domain.RoleAssistant, replyDeviceNotFound)
		return
	}

	pos, err := s.latestPosition(ctx, creds, dev)
	if err != nil {
		slog.Error("speed: position fetch failed", "device_id", dev.ID, "err", err)
		turn.append(domain.RoleAssistant, replySpeedError)
		return
	}

	turn.append(domain.RoleAssistant, fmt.Sprintf(
		"🚗 El dispositivo '%s' se mueve a %s km/h.", dev.Name, formatSpeedKPH(pos.Speed),
	))
}

func (s *TriageService) handleStatus(ctx context.Context, turn *Turn, creds domain.Credentials) {
	if creds.Empty() {
		turn.append(domain.RoleAssistant, replyNoCredentials)
		return
	}

	devices, err := s.tracking.Devices(ctx, creds)
	if err != nil {
		slog.Error("status: device fetch failed", "err", err)
		turn.append(domain.RoleAssistant, replyStatusError)
		return
	}

	dev, ok := matchDevice(devices, turn.userMessage())
	if !ok {
		turn.append(domain.RoleAssistant, replyDeviceNotFound)
		return
	}

	pos, err := s.latestPosition(ctx, creds, dev)
	if err != nil {
		slog.Error("status: position fetch failed", "device_id", dev.ID, "err", err)
		turn.append(domain.RoleAssistant, replyStatusError)
		return
	}

	batteryLevel := attrString(pos.Attributes, "batteryLevel")
	battery := attrString(pos.Attributes, "battery")
	distanceKM := formatDistanceKM(attrFloat(pos.Attributes, "totalDistance"))
	motion := "🔴 Detenido"
	if attrBool(pos.Attributes, "motion") {
		motion = "🟢 En movimiento"
	}

	turn.append(domain.RoleAssistant, fmt.Sprintf(
		"📡 Estado del dispositivo '%s':\n"+
			"```\n"+
			"🕒 Fix Time               %s\n"+
			"📍 Distancia              %s km\n"+
			"🔋 Nivel de la batería    %s%%\n"+
			"🔋 Voltaje de la batería  %s V\n"+
			"🚗 Movimiento             %s\n"+
			"```",
		dev.Name, formatFixTime(pos.FixTime), distanceKM, batteryLevel, battery, motion,
	))
}

func (s *TriageService) handleList(ctx context.Context, turn *Turn, creds domain.Credentials) {
	if creds.Empty() {
		turn.append(domain.RoleAssistant, replyNoCredentials)
		return
	}

	devices, err := s.tracking.Devices(ctx, creds)
	if err != nil {
		slog.Error("list: device fetch failed", "err", err)
		turn.append(domain.RoleAssistant, replyListError)
		return
	}

	if len(devices) == 0 {
		turn.append(domain.RoleAssistant, replyNoDevices)
		return
	}

	lines := []string{"📋 Lista de dispositivos registrados:"}
	for _, d := range devices {
		lines = append(lines, fmt.Sprintf("- %s (ID: %d)", d.Name, d.ID))
	}
	turn.append(domain.RoleAssistant, strings.Join(lines, "\n"))
}

func (s *TriageService) handleAsk(ctx context.Context, turn *Turn, _ domain.Credentials) {
	// The raw (non-lowered) question goes to the retrieval collaborator.
	question := turn.Messages[0].Content
	answer, err := s.knowledge.Answer(ctx, question)
	if err != nil {
		slog.Error("ask: retrieval answer failed", "err", err)
		turn.append(domain.RoleAssistant, replyAskError)
		return
	}
	turn.append(domain.RoleAssistant, answer)
}

func (s *TriageService) handleIgnore(_ context.Context, turn *Turn, _ domain.Credentials) {
	turn.append(domain.RoleAssistant, replyIgnore)
}

// formatCoord prints a coordinate with its natural precision (10.1, -66.9).
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatSpeedKPH converts knots to km/h rounded to one decimal place.
func formatSpeedKPH(knots float64) string {
	kph := math.Round(knots*1.852*10) / 10
	return strconv.FormatFloat(kph, 'f', 1, 64)
}

// formatDistanceKM converts meters to kilometers rounded to two decimals.
func formatDistanceKM(meters float64) string {
	km := math.Round(meters/1000*100) / 100
	return strconv.FormatFloat(km, 'f', 2, 64)
}

// formatFixTime renders an ISO fix timestamp in the fixed display layout, or
// the unavailable marker when the position carries none.
func formatFixTime(fixTime string) string {
	if strings.TrimSpace(fixTime) == "" {
		return attrUnavailable
	}
	t, err := time.Parse(time.RFC3339, fixTime)
	if err != nil {
		return attrUnavailable
	}
	return t.Format(fixTimeLayout)
}

// attrString renders an optional position attribute, defaulting to the
// unavailable marker. Numbers decoded from JSON arrive as float64 and are
// printed without a forced decimal point.
func attrString(attrs map[string]any, key string) string {
	v, ok := attrs[key]
	if !ok || v == nil {
		return attrUnavailable
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func attrFloat(attrs map[string]any, key string) float64 {
	if v, ok := attrs[key].(float64); ok {
		return v
	}
	return 0
}

func attrBool(attrs map[string]any, key string) bool {
	if v, ok := attrs[key].(bool); ok {
		return v
	}
	return false
}
