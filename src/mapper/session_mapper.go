package mapper

import (
	"encoding/json"

	logger "github.com/sirupsen/logrus"

	"tradedeck/src/model"
)

// SessionFromRecord converts a raw council_sessions row into a typed
// model.CouncilSession. Scores and confidences are required numerics;
// the technical_detail blob fails soft to nil.
func SessionFromRecord(rec Record) (*model.CouncilSession, error) {
	const resource = "council_session"

	id, err := requireString(resource, rec, "id")
	if err != nil {
		return nil, err
	}
	assetID, err := requireString(resource, rec, "asset_id")
	if err != nil {
		return nil, err
	}
	timestamp, err := requireTime(resource, rec, "timestamp")
	if err != nil {
		return nil, err
	}
	decision, err := requireString(resource, rec, "final_decision")
	if err != nil {
		return nil, err
	}
	sentiment, err := requireFloat(resource, rec, "sentiment_score")
	if err != nil {
		return nil, err
	}
	confidence, err := requireFloat(resource, rec, "decision_confidence")
	if err != nil {
		return nil, err
	}

	session := &model.CouncilSession{
		ID:                 id,
		AssetID:            assetID,
		Timestamp:          timestamp,
		SentimentScore:     sentiment,
		TechnicalSignal:    optString(rec, "technical_signal"),
		VisionAnalysis:     optString(rec, "vision_analysis"),
		VisionValid:        optBool(rec, "vision_valid"),
		FinalDecision:      decision,
		DecisionConfidence: confidence,
		ReasoningLog:       optString(rec, "reasoning_log"),
		TechnicalDetail:    decodeTechnicalDetail(rec),
	}

	if strength, err := optFloat(resource, rec, "technical_strength"); err != nil {
		return nil, err
	} else if strength != nil {
		session.TechnicalStrength = *strength
	}
	if visionConf, err := optFloat(resource, rec, "vision_confidence"); err != nil {
		return nil, err
	} else if visionConf != nil {
		session.VisionConfidence = *visionConf
	}
	if created := optTime(rec, "created_at"); created != nil {
		session.CreatedAt = *created
	}

	return session, nil
}

// decodeTechnicalDetail parses the optional indicator blob. Invalid JSON
// degrades to nil so the rest of the session still renders.
func decodeTechnicalDetail(rec Record) map[string]float64 {
	raw, ok := rec["technical_detail"]
	if !ok || string(raw) == "null" {
		return nil
	}

	// The column is text on the wire; it may arrive either as a JSON
	// string containing JSON, or as an inline object.
	payload := []byte(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		payload = []byte(s)
	}

	var detail map[string]float64
	if err := json.Unmarshal(payload, &detail); err != nil {
		logger.WithFields(map[string]interface{}{
			"mapper": "decodeTechnicalDetail",
			"value":  string(raw),
		}).Debug("Unparseable technical_detail, degrading to nil")
		return nil
	}
	return detail
}

func SessionsFromRecords(recs []Record) []model.CouncilSession {
	out := make([]model.CouncilSession, 0, len(recs))
	for _, rec := range recs {
		session, err := SessionFromRecord(rec)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"mapper":   "SessionsFromRecords",
				"resource": "council_session",
			}).WithError(err).Error("Dropping malformed council session record")
			continue
		}
		out = append(out, *session)
	}
	return out
}
