package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/hyperjump/autocat/internal/models"
	"github.com/hyperjump/autocat/internal/storage"
)

// DefaultCategoryNames is the stock category list of a new gallery.
var DefaultCategoryNames = []string{
	"3D", "动物", "建筑", "品牌", "卡通", "角色", "黏土", "创意", "数据可视化", "表情符号",
	"奇幻", "时尚", "毛毡", "美食", "未来风", "游戏", "插画", "信息图", "室内", "风景",
	"标志", "极简", "自然", "纸艺", "摄影", "肖像", "玩具",
}

// SeedCategories creates the named categories that do not exist yet, in order, plus the
// Uncategorized sentinel. It returns the number created.
func (e *Engine) SeedCategories(ctx context.Context, names []string) (int, error) {
	if _, err := e.store.EnsureUncategorized(ctx); err != nil {
		return 0, err
	}
	created := 0
	for i, name := range names {
		if name == "" || name == models.UncategorizedName {
			continue
		}
		_, err := e.store.GetCategoryByName(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return created, err
		}
		c := &models.Category{Name: name, SortOrder: i + 1, IsActive: true}
		if err := e.store.CreateCategory(ctx, c); err != nil {
			return created, err
		}
		created++
	}
	e.logger.Info("categories seeded", zap.Int("created", created))
	return created, nil
}
