package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverSqlite   = "sqlite"
	DriverMysql    = "mysql"
	DriverPostgres = "postgres"
)

type Database struct {
	Driver   string `yaml:"driver" json:"driver,omitempty" validate:"omitempty,oneof=sqlite mysql postgres"`
	Dsn      string `yaml:"dsn" json:"dsn,omitempty"`
	Host     string `yaml:"host" json:"host,omitempty"`
	Port     int64  `yaml:"port" json:"port,omitempty"`
	User     string `yaml:"user" json:"user,omitempty"`
	Password string `yaml:"password" json:"password,omitempty"`
	DbName   string `yaml:"db-name" json:"db-name,omitempty"`
}

// OpenDatabase 根据 driver 打开对应的 gorm 连接
func OpenDatabase(database Database) (*gorm.DB, error) {
	switch database.Driver {
	case DriverMysql:
		return InitMysql(database)
	case DriverPostgres:
		return InitPg(database)
	default:
		return InitSqlite(database)
	}
}

// InitSqlite 打开本地 sqlite 文件，dsn 为空时使用 db-name 作为文件路径
func InitSqlite(database Database) (*gorm.DB, error) {
	dsn := database.Dsn
	if dsn == "" {
		dsn = database.DbName
	}
	if dsn == "" {
		dsn = "atomic_deployments.db"
	}
	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// sqlite 只允许单写
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func InitPg(database Database) (*gorm.DB, error) {
	dsn := database.Dsn
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=disable password=%s",
			database.Host, database.Port, database.User, database.DbName, database.Password)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// 获取底层的sql.DB并配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func InitMysql(database Database) (*gorm.DB, error) {
	dsn := database.Dsn
	if dsn == "" {
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			database.User, database.Password, database.Host, database.Port, database.DbName)
	}
	return gorm.Open(mysql.Open(dsn), &gorm.Config{})
}
