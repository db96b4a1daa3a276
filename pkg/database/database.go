package database

import (
	"campus_edu_backend/internal/config"
	"campus_edu_backend/internal/model"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dbCfg := &cfg.Database
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		dbCfg.User,
		dbCfg.Password,
		dbCfg.Host,
		dbCfg.Port,
		dbCfg.DBName,
		dbCfg.Charset,
		dbCfg.ParseTime,
	)

	// TranslateError 打开后，唯一索引冲突统一映射为 gorm.ErrDuplicatedKey，
	// 重复开考的并发拒绝依赖它
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Info),
		TranslateError: true,
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	// release 模式下结构变更走发布流程，不自动迁移；--migrate/--migrate-only 可强制
	if cfg.Server.Mode == "release" && !cfg.ForceMigrate {
		return db, nil
	}

	err = db.AutoMigrate(
		&model.User{},
		&model.ClassSection{},
		&model.Enrollment{},
		&model.Quiz{},
		&model.QuizQuestion{},
		&model.QuizAnswerOption{},
		&model.QuizAttempt{},
		&model.QuizAttemptAnswer{},
		&model.GradeBook{},
		&model.GradeItem{},
		&model.GradeEntry{},
		&model.GradebookApproval{},
	)

	if err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	if err := seedDefaults(db); err != nil {
		return nil, err
	}

	return db, nil
}

// seedDefaults 空库时插入默认管理员，便于首次部署登录
func seedDefaults(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := &model.User{
		Name:     "系统管理员",
		Email:    "admin@campus.local",
		Password: string(hash),
		Role:     model.Admin,
	}
	if err := db.Create(admin).Error; err != nil {
		return err
	}
	log.Println("Seeded default admin account (admin@campus.local)")
	return nil
}
