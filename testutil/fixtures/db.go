// =============================================================================
// 📦 测试数据工厂 - 数据库
// =============================================================================
// 基于纯 Go SQLite 的内存数据库，已完成全部表迁移
// =============================================================================
package fixtures

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/BaSui01/roundtable/meeting/store"
)

// NewDB 返回已迁移的内存数据库。
// 连接数限制为 1，保证 :memory: 库在所有查询间共享。
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, store.AutoMigrate(db))
	return db
}
