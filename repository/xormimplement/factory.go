package xormimplement

import (
	"context"
	"fmt"

	"healthcare_assistant/entity"
	"healthcare_assistant/repository"
	"healthcare_assistant/repository/factory"
	"healthcare_assistant/repository/interfaces"

	"github.com/sirupsen/logrus"
	"xorm.io/xorm"

	_ "github.com/lib/pq"
)

type Factory struct {
	// 连接 pg
	engine *xorm.Engine
}

// Config 数据库连接参数
type Config struct {
	Type     string
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	ShowSQL  bool
}

// NewRepositoryFactory 创建仓库工厂并同步表结构
func NewRepositoryFactory(cfg *Config) (factory.Factory, error) {
	engine, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	// 启动时同步表结构
	if err := engine.Sync2(new(entity.Chat), new(entity.UserProfile)); err != nil {
		return nil, fmt.Errorf("failed to sync tables: %w", err)
	}

	return &Factory{engine: engine}, nil
}

// 设置xorm的连接参数
func openDB(cfg *Config) (*xorm.Engine, error) {
	//拼接数据库参数
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.Host,
		cfg.Username,
		cfg.Password,
		cfg.Name,
		cfg.Port)
	//设置连接参数
	engine, err := xorm.NewEngine(cfg.Type, dsn)
	if err != nil {
		logrus.Errorf("Database connection failed err: %v. Database name: %s", err, cfg.Name)
		return nil, err
	}
	//是否展示sql文件
	engine.ShowSQL(cfg.ShowSQL)
	return engine, nil
}

// Close 关闭数据库连接
func (f *Factory) Close() error {
	return f.engine.Close()
}

// 创建一个会话
func (f *Factory) NewSession(ctx context.Context) interfaces.Session {
	return &Session{Session: f.engine.NewSession().Context(ctx)}
}

// NewChatRepository 创建会话元数据仓库
func (f *Factory) NewChatRepository(session interfaces.Session) (repository.ChatRepository, error) {
	if s, ok := session.(*Session); ok {
		return NewChatRepository(s), nil
	}
	return nil, fmt.Errorf("xorm session 结构解析失败")
}

// NewUserProfileRepository 创建用户画像仓库
func (f *Factory) NewUserProfileRepository(session interfaces.Session) (repository.UserProfileRepository, error) {
	if s, ok := session.(*Session); ok {
		return NewUserProfileRepository(s), nil
	}
	return nil, fmt.Errorf("xorm session 结构解析失败")
}
