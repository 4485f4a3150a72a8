// 题库初始化脚本
//
// 创建一套示例试卷并填充四个模块的题目，自适应模块覆盖全部难度档位。
// 用于首次部署或本地联调时快速得到一套可开考的数据。
//
// 用法: go run scripts/seed_exams.go

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"sat_prep_backend/internal/config"
	"sat_prep_backend/internal/model"
	"sat_prep_backend/pkg/database"
	"sat_prep_backend/pkg/logger"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

func main() {
	data, err := os.ReadFile("configs/config.yaml")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	logger.InitLogger(&cfg)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	log.Println("开始初始化题库...")
	if err := seedExam(db); err != nil {
		log.Fatalf("题库初始化失败: %v", err)
	}
	log.Println("完成！")
}

func seedExam(db *gorm.DB) error {
	var count int64
	db.Model(&model.Exam{}).Count(&count)
	if count > 0 {
		log.Println("已有试卷，跳过初始化")
		return nil
	}

	exam := &model.Exam{
		Name:        "SAT Practice Test 1",
		Description: "Full-length adaptive practice test",
		IsActive:    true,
	}
	if err := db.Create(exam).Error; err != nil {
		return err
	}

	options := json.RawMessage(`["A","B","C","D"]`)
	var questions []model.Question

	// 第一模块混合难度，第二模块各难度档位均需有题
	for _, module := range model.ModuleSequence {
		skill := "Reading Comprehension"
		if module.Section() == model.SectionMath {
			skill = "Algebra"
		}
		for difficulty := 1; difficulty <= 5; difficulty++ {
			for i := 0; i < 4; i++ {
				questions = append(questions, model.Question{
					ExamID:        exam.ID,
					Module:        module,
					Difficulty:    difficulty,
					SkillCategory: skill,
					QuestionText:  fmt.Sprintf("Sample %s question (difficulty %d, #%d)", module, difficulty, i+1),
					Options:       options,
					CorrectAnswer: "A",
					Explanation:   "Option A is correct.",
				})
			}
		}
	}

	if err := db.CreateInBatches(questions, 100).Error; err != nil {
		return err
	}

	exam.TotalQuestions = len(questions)
	if err := db.Save(exam).Error; err != nil {
		return err
	}

	log.Printf("已创建试卷 %q，共 %d 道题", exam.Name, len(questions))
	return nil
}
