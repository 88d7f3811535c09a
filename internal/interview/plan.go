// Package interview は面接セッションの状態機械とタイマー制御を提供する。
// セッションの状態遷移、6問のスロット進行、提出ロック、ゲートウェイ連携を統括する。
package interview

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/interviewman/internal/model"
)

// Slot は面接シーケンス内の1枠を表す。難易度と制限時間は固定構成であり、
// 候補者の成績によって並び替えられることはない。
type Slot struct {
	Difficulty model.Difficulty `yaml:"difficulty"`
	Seconds    int              `yaml:"seconds"`
}

// Plan は6スロットの面接構成を表す。
type Plan struct {
	Slots []Slot `yaml:"slots"`
}

// DefaultPlan は既定の6スロット構成を返す。
// easy 20秒 ×2、medium 60秒 ×2、hard 120秒 ×2。
func DefaultPlan() Plan {
	return Plan{
		Slots: []Slot{
			{Difficulty: model.DifficultyEasy, Seconds: 20},
			{Difficulty: model.DifficultyEasy, Seconds: 20},
			{Difficulty: model.DifficultyMedium, Seconds: 60},
			{Difficulty: model.DifficultyMedium, Seconds: 60},
			{Difficulty: model.DifficultyHard, Seconds: 120},
			{Difficulty: model.DifficultyHard, Seconds: 120},
		},
	}
}

// LoadPlan はYAMLファイルからスロット構成を読み込む。
// pathが空の場合はデフォルト構成を返す。
func LoadPlan(path string) (Plan, error) {
	if path == "" {
		return DefaultPlan(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to read plan file: %w", err)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return Plan{}, fmt.Errorf("failed to parse plan file: %w", err)
	}

	if err := plan.Validate(); err != nil {
		return Plan{}, fmt.Errorf("invalid plan file %s: %w", path, err)
	}
	return plan, nil
}

// Validate はスロット構成が6枠・既知の難易度・正の制限時間であることを検証する。
func (p Plan) Validate() error {
	if len(p.Slots) != model.QuestionCount {
		return fmt.Errorf("plan must have exactly %d slots, got %d", model.QuestionCount, len(p.Slots))
	}
	for i, slot := range p.Slots {
		if !model.ValidDifficulty(slot.Difficulty) {
			return fmt.Errorf("slot %d: unknown difficulty %q", i, slot.Difficulty)
		}
		if slot.Seconds <= 0 {
			return fmt.Errorf("slot %d: seconds must be positive, got %d", i, slot.Seconds)
		}
	}
	return nil
}

// SlotKey はスロットインデックスからタイマーのキーを生成する。
// タイマーは質問IDではなくスロットで引く。質問生成前からタイマー状態が
// 存在し、pause/resumeをまたいで経過時間が保存されるため。
func SlotKey(index int) string {
	return fmt.Sprintf("slot_%d", index)
}
