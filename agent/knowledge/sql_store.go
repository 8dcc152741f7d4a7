package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/agentcoord/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FactRecord 知识事实表
type FactRecord struct {
	AgentID       string    `gorm:"primaryKey;size:128"`
	FactKey       string    `gorm:"primaryKey;size:191"`
	Topics        []string  `gorm:"serializer:json;type:text"`
	Statement     string    `gorm:"type:text"`
	Version       uint64    `gorm:"not null;default:0;index"`
	Origin        string    `gorm:"size:128"`
	FactUpdatedAt time.Time `gorm:"column:fact_updated_at"`
}

// TableName 指定表名
func (FactRecord) TableName() string {
	return "knowledge_facts"
}

// CursorRecord 同步游标表
type CursorRecord struct {
	AgentID   string `gorm:"primaryKey;size:128"`
	Version   uint64 `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// TableName 指定表名
func (CursorRecord) TableName() string {
	return "knowledge_cursors"
}

// SQLStore 基于 GORM 的知识库，支持 PostgreSQL、MySQL、SQLite
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore 创建 SQL 知识库。表结构由迁移或 AutoMigrate 创建。
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

// AutoMigrate 自动迁移知识库表结构（开发和测试环境）
func (s *SQLStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&FactRecord{}, &CursorRecord{}); err != nil {
		return fmt.Errorf("failed to auto migrate knowledge tables: %w", err)
	}
	return nil
}

// CurrentFacts implements Store.
func (s *SQLStore) CurrentFacts(ctx context.Context, agentID string) ([]types.KnowledgeFact, error) {
	var rows []FactRecord
	err := s.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("fact_key").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load facts for %s: %w", agentID, err)
	}

	out := make([]types.KnowledgeFact, len(rows))
	for i, r := range rows {
		out[i] = r.toFact()
	}
	return out, nil
}

// ApplyFacts implements Store. 读取与写入在同一事务中完成。
func (s *SQLStore) ApplyFacts(ctx context.Context, agentID string, facts []types.KnowledgeFact) error {
	if len(facts) == 0 {
		return nil
	}

	keys := make([]string, len(facts))
	for i, f := range facts {
		keys[i] = f.Key
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []FactRecord
		if err := tx.Where("agent_id = ? AND fact_key IN ?", agentID, keys).Find(&rows).Error; err != nil {
			return err
		}
		existing := make(map[string]types.KnowledgeFact, len(rows))
		for _, r := range rows {
			existing[r.FactKey] = r.toFact()
		}

		win := winners(existing, facts)
		if len(win) == 0 {
			return nil
		}
		records := make([]FactRecord, len(win))
		for i, f := range win {
			records[i] = newFactRecord(agentID, f)
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "agent_id"}, {Name: "fact_key"}},
			UpdateAll: true,
		}).Create(&records).Error
	})
}

// LastSynced implements Store.
func (s *SQLStore) LastSynced(ctx context.Context, agentID string) (uint64, error) {
	var cursor CursorRecord
	err := s.db.WithContext(ctx).Where("agent_id = ?", agentID).Limit(1).Find(&cursor).Error
	if err != nil {
		return 0, fmt.Errorf("load cursor for %s: %w", agentID, err)
	}
	return cursor.Version, nil
}

// MarkSynced implements Store.
func (s *SQLStore) MarkSynced(ctx context.Context, agentID string, version uint64) error {
	cursor := CursorRecord{AgentID: agentID, Version: version}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "agent_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"version", "updated_at"}),
	}).Create(&cursor).Error
}

func newFactRecord(agentID string, f types.KnowledgeFact) FactRecord {
	return FactRecord{
		AgentID:       agentID,
		FactKey:       f.Key,
		Topics:        f.Topics,
		Statement:     f.Statement,
		Version:       f.Version,
		Origin:        f.Origin,
		FactUpdatedAt: f.UpdatedAt,
	}
}

func (r FactRecord) toFact() types.KnowledgeFact {
	return types.KnowledgeFact{
		Key:       r.FactKey,
		Topics:    r.Topics,
		Statement: r.Statement,
		Version:   r.Version,
		Origin:    r.Origin,
		UpdatedAt: r.FactUpdatedAt,
	}
}
