package repository

import (
	"sat_prep_backend/internal/model"

	"gorm.io/gorm"
)

type ExamRepository struct {
	DB *gorm.DB
}

func NewExamRepository(db *gorm.DB) *ExamRepository {
	return &ExamRepository{DB: db}
}

func (r *ExamRepository) Create(exam *model.Exam) error {
	return r.DB.Create(exam).Error
}

func (r *ExamRepository) Update(exam *model.Exam) error {
	return r.DB.Save(exam).Error
}

// FindAllActive 列出所有上架的试卷
func (r *ExamRepository) FindAllActive() ([]model.Exam, error) {
	var exams []model.Exam
	err := r.DB.Where("is_active = ?", true).Order("id").Find(&exams).Error
	return exams, err
}

// FindActiveByID 只返回上架中的试卷，下架试卷对考生不可见
func (r *ExamRepository) FindActiveByID(id uint) (*model.Exam, error) {
	var exam model.Exam
	err := r.DB.Where("id = ? AND is_active = ?", id, true).First(&exam).Error
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

func (r *ExamRepository) FindByID(id uint) (*model.Exam, error) {
	var exam model.Exam
	err := r.DB.First(&exam, id).Error
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

func (r *ExamRepository) SetActive(id uint, active bool) error {
	return r.DB.Model(&model.Exam{}).Where("id = ?", id).Update("is_active", active).Error
}

func (r *ExamRepository) List(page, limit int) ([]model.Exam, int64, error) {
	var exams []model.Exam
	var total int64
	query := r.DB.Model(&model.Exam{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("id").Offset(offset).Limit(limit).Find(&exams).Error
	return exams, total, err
}
