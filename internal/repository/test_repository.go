package repository

import (
	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/internal/model"
	"gorm.io/gorm"
)

type TestRepository interface {
	Create(test *model.Test) error
	FindByTestID(testID string) (*model.Test, error)
}

type testRepository struct {
	db *gorm.DB
}

func NewTestRepository(db *gorm.DB) TestRepository {
	return &testRepository{db: db}
}

func (r *testRepository) Create(test *model.Test) error {
	return r.db.Create(test).Error
}

func (r *testRepository) FindByTestID(testID string) (*model.Test, error) {
	var test model.Test
	if err := r.db.Where("test_id = ?", testID).First(&test).Error; err != nil {
		return nil, err
	}
	return &test, nil
}
