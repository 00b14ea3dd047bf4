package ocr

import "github.com/fpang/idcard-ocr/internal/idcard"

// Report column names for extracted values.
const (
	FieldName      = "name"
	FieldGender    = "gender"
	FieldNation    = "nation"
	FieldBirth     = "birth"
	FieldAddress   = "address"
	FieldIDNum     = "id_num"
	FieldAuthority = "authority"
	FieldValidDate = "valid_date"
)

// FrontFields and BackFields list the columns each side produces, in report order.
var (
	FrontFields = []string{FieldName, FieldGender, FieldNation, FieldBirth, FieldAddress, FieldIDNum}
	BackFields  = []string{FieldAuthority, FieldValidDate}
)

// mapFields copies the side's recognised values into report columns. Every
// column for the side is present, empty when the service omitted it.
func mapFields(side idcard.Side, r *responseBody) map[string]string {
	if side == idcard.Back {
		return map[string]string{
			FieldAuthority: r.Authority,
			FieldValidDate: r.ValidDate,
		}
	}
	return map[string]string{
		FieldName:    r.Name,
		FieldGender:  r.Sex,
		FieldNation:  r.Nation,
		FieldBirth:   r.Birth,
		FieldAddress: r.Address,
		FieldIDNum:   r.IdNum,
	}
}
