// Package codec converts between tag fields and bank card records.
//
// A bank tag carries two fields: "bal" holding the balance as a 4 byte
// little endian IEEE-754 float and "nam" holding the holder name as raw UTF-8.
package codec

import (
	// Go Internal Packages
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	// Local Packages
	errors "nfc-bank/errors"
	models "nfc-bank/models"
)

const balanceSize = 4

// fields is the typed view of the tag fields the codec understands.
type fields struct {
	name    []byte
	balance []byte
	hasName bool
	hasBal  bool
}

func collect(in []models.Field) fields {
	var f fields
	for _, field := range in {
		switch field.Tag {
		case models.FieldName:
			if !f.hasName {
				f.name, f.hasName = field.Payload, true
			}
		case models.FieldBalance:
			if !f.hasBal {
				f.balance, f.hasBal = field.Payload, true
			}
		}
	}
	return f
}

// Decode returns the record stored in the fields, or a Decode error when
// either field is missing or the balance payload is too short or not finite.
func Decode(in []models.Field) (models.CardRecord, error) {
	f := collect(in)
	if !f.hasName || !f.hasBal {
		return models.CardRecord{}, errors.NotRecognizedErr(fmt.Errorf("missing %s", missing(f)))
	}
	if len(f.balance) < balanceSize {
		return models.CardRecord{}, errors.NotRecognizedErr(fmt.Errorf("balance payload has %d bytes", len(f.balance)))
	}

	balance := math.Float32frombits(binary.LittleEndian.Uint32(f.balance[:balanceSize]))
	if b := float64(balance); math.IsNaN(b) || math.IsInf(b, 0) {
		return models.CardRecord{}, errors.NotRecognizedErr(fmt.Errorf("balance %v is not a number", b))
	}
	return models.CardRecord{
		Holder:  strings.ToValidUTF8(string(f.name), "�"),
		Balance: balance,
	}, nil
}

// Encode produces the balance field followed by the name field.
func Encode(r models.CardRecord) []models.Field {
	bal := make([]byte, balanceSize)
	binary.LittleEndian.PutUint32(bal, math.Float32bits(r.Balance))
	return []models.Field{
		{Tag: models.FieldBalance, Payload: bal},
		{Tag: models.FieldName, Payload: []byte(r.Holder)},
	}
}

// DecodeCard builds a Card for a tag event. The identity is always set; Data
// stays nil when the tag is not a bank card and the decode error is returned.
func DecodeCard(id models.CardIdentity, in []models.Field) (models.Card, error) {
	card := models.Card{ID: id}
	rec, err := Decode(in)
	if err != nil {
		return card, err
	}
	return card.WithRecord(rec), nil
}

func missing(f fields) string {
	switch {
	case !f.hasName && !f.hasBal:
		return models.FieldBalance + " and " + models.FieldName
	case !f.hasName:
		return models.FieldName
	}
	return models.FieldBalance
}
