package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// legacyRecord is the document shape written by the first release of the
// chaincode: Spanish field names and an integer state ordinal.
type legacyRecord struct {
	DocType             string        `json:"docType"`
	AssetID             string        `json:"assetID"`
	NombreComercial     string        `json:"nombreComercial"`
	Lote                string        `json:"lote"`
	FechaFabricacion    string        `json:"fechaFabricacion"`
	FechaVencimiento    string        `json:"fechaVencimiento"`
	EstadoActual        *int          `json:"estadoActual"`
	PropietarioActual   string        `json:"propietarioActual"`
	HistorialDeCustodia []legacyEntry `json:"historialDeCustodia"`
}

type legacyEntry struct {
	Timestamp string `json:"timestamp"`
	Actor     string `json:"actor"`
	Accion    string `json:"accion"`
	Ubicacion string `json:"ubicacion"`
}

func upgradeLegacyRecord(data []byte) (*AssetRecord, error) {
	var old legacyRecord
	if err := json.Unmarshal(data, &old); err != nil {
		return nil, err
	}
	if old.EstadoActual == nil {
		return nil, errors.New("no state field found")
	}
	ordinal := *old.EstadoActual
	if ordinal < 0 || ordinal >= len(stateOrder) {
		return nil, fmt.Errorf("legacy state ordinal %d out of range", ordinal)
	}
	mfg, err := time.Parse(time.RFC3339, old.FechaFabricacion)
	if err != nil {
		return nil, fmt.Errorf("legacy fechaFabricacion: %w", err)
	}
	exp, err := time.Parse(time.RFC3339, old.FechaVencimiento)
	if err != nil {
		return nil, fmt.Errorf("legacy fechaVencimiento: %w", err)
	}

	rec := &AssetRecord{
		RecordType:      AssetRecordType,
		AssetID:         old.AssetID,
		CommercialName:  old.NombreComercial,
		BatchNumber:     old.Lote,
		ManufactureDate: mfg,
		ExpiryDate:      exp,
		State:           stateOrder[ordinal],
		CurrentOwnerID:  legacyOwner(old.PropietarioActual),
		CustodyHistory:  make([]HistoryEntry, 0, len(old.HistorialDeCustodia)),
	}
	for _, e := range old.HistorialDeCustodia {
		ts, _ := time.Parse(time.RFC3339, e.Timestamp) // zero time if the entry carried none
		action, ok := legacyActionNames[e.Accion]
		if !ok {
			action = e.Accion // dispense tags embedded the patient ID, keep them verbatim
		}
		rec.CustodyHistory = append(rec.CustodyHistory, HistoryEntry{
			Timestamp: ts,
			Actor:     PrincipalID(e.Actor),
			Action:    action,
			Location:  e.Ubicacion,
		})
	}
	return rec, nil
}

var legacyActionNames = map[string]string{
	"CREADO":                  ActionCreated,
	"TRANSFERIDO_A_LOGISTICA": ActionTransferredToLogistics,
	"TRANSFERIDO_A_SALUD":     ActionTransferredToHealth,
	"RECIBIDO_LOGISTICA":      ActionReceivedLogistics,
	"RECIBIDO_SALUD":          ActionReceivedHealth,
}

// legacyPatientOwner marked dispensed assets before PatientPrincipal existed.
const legacyPatientOwner = "PACIENTE"

func legacyOwner(owner string) PrincipalID {
	if owner == legacyPatientOwner {
		return PatientPrincipal
	}
	return PrincipalID(owner)
}
