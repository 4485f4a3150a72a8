package repository

import (
	"sat_prep_backend/internal/model"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) Create(q *model.Question) error {
	return r.DB.Create(q).Error
}

func (r *QuestionRepository) CreateBatch(qs []model.Question) error {
	if len(qs) == 0 {
		return nil
	}
	return r.DB.Create(&qs).Error
}

func (r *QuestionRepository) Update(q *model.Question) error {
	return r.DB.Save(q).Error
}

func (r *QuestionRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Question{}, id).Error
}

func (r *QuestionRepository) FindByID(id uint) (*model.Question, error) {
	var q model.Question
	if err := r.DB.First(&q, id).Error; err != nil {
		return nil, err
	}
	q.NormalizeOptions()
	return &q, nil
}

// FindByModule 查某张试卷某个模块的题目。difficulty 非空时按其档位过滤
// （仅模块2使用，模块1混合难度不过滤）。
func (r *QuestionRepository) FindByModule(examID uint, module model.ModuleTag, difficulty *model.Difficulty) ([]model.Question, error) {
	query := r.DB.Where("exam_id = ? AND module = ?", examID, module)
	if difficulty != nil {
		if min, max, ok := difficulty.Band(); ok {
			query = query.Where("difficulty BETWEEN ? AND ?", min, max)
		}
	}

	var qs []model.Question
	if err := query.Order("id").Find(&qs).Error; err != nil {
		return nil, err
	}
	for i := range qs {
		qs[i].NormalizeOptions()
	}
	return qs, nil
}

// FindByModules 查一张试卷多个模块的全部题目，不做难度过滤
func (r *QuestionRepository) FindByModules(examID uint, modules []model.ModuleTag) ([]model.Question, error) {
	var qs []model.Question
	err := r.DB.Where("exam_id = ? AND module IN ?", examID, modules).Order("id").Find(&qs).Error
	if err != nil {
		return nil, err
	}
	for i := range qs {
		qs[i].NormalizeOptions()
	}
	return qs, nil
}

func (r *QuestionRepository) FindByIDs(ids []uint) ([]model.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var qs []model.Question
	err := r.DB.Where("id IN ?", ids).Find(&qs).Error
	if err != nil {
		return nil, err
	}
	for i := range qs {
		qs[i].NormalizeOptions()
	}
	return qs, nil
}

func (r *QuestionRepository) CountByExam(examID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Question{}).Where("exam_id = ?", examID).Count(&count).Error
	return count, err
}
