package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/mobistudy/internal/database"
	"github.com/BradenHooton/mobistudy/internal/models"
)

var dataTables = map[models.DataCategory]string{
	models.DataAnswers:         "answers",
	models.DataHealthStoreData: "health_store_data",
	models.DataMiband3:         "miband3_data",
	models.DataQCST:            "qcst_data",
	models.DataSMWT:            "smwt_data",
}

// DataRepository owns one category of participant-collected data. The
// server only purges it; records are written by the data upload services.
// All categories share the same table layout.
type DataRepository struct {
	db       *database.DB
	category models.DataCategory
	table    string
}

func NewDataRepository(db *database.DB, category models.DataCategory) (*DataRepository, error) {
	table, ok := dataTables[category]
	if !ok {
		return nil, fmt.Errorf("unknown data category %q", category)
	}
	return &DataRepository{db: db, category: category, table: table}, nil
}

func (r *DataRepository) Category() models.DataCategory {
	return r.category
}

// DeleteByUserKey removes every record of the user and returns how many were removed
func (r *DataRepository) DeleteByUserKey(ctx context.Context, userKey string) (int64, error) {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM `+r.table+` WHERE user_key = $1`, userKey)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
