package feature

import (
	"context"
	"fmt"
	"strings"

	"github.com/rushteam/venuerec/core"
)

// ProfileSeparator 画像文本片段之间的分隔符。
const ProfileSeparator = "; "

// ProfileBuilder 把用户的五类文本来源拼成画像文本，并编码为画像向量。
//
// 顺序：偏好类别、消费门店、收藏品牌描述、点击门店、搜索关键词。
// 全部为空时返回 core.ErrInsufficientProfile，推荐核心不会被调用。
type ProfileBuilder struct {
	Source  core.ProfileSource
	Encoder core.TextEncoder
}

// Text 返回画像文本。
func (b *ProfileBuilder) Text(ctx context.Context, userID string) (string, error) {
	texts, err := b.Source.ProfileTexts(ctx, userID)
	if err != nil {
		return "", core.Unavailable(core.ModuleProfile, err)
	}
	parts := texts.Parts()
	if len(parts) == 0 {
		return "", core.ErrInsufficientProfile.Wrap(fmt.Errorf("user %s has no profile text", userID))
	}
	return strings.Join(parts, ProfileSeparator), nil
}

// Build 返回画像向量。
func (b *ProfileBuilder) Build(ctx context.Context, userID string) ([]float64, error) {
	text, err := b.Text(ctx, userID)
	if err != nil {
		return nil, err
	}
	vec, err := b.Encoder.Encode(ctx, text)
	if err != nil {
		if core.IsDomainError(err) {
			return nil, err
		}
		return nil, core.Unavailable(core.ModuleService, err)
	}
	return vec, nil
}
