package pipeline

import (
	"sync"

	"github.com/iabetor/dailynews/internal/logger"
)

// Stage 表示一次运行所处的阶段。
type Stage int

const (
	// StageIdle 尚未开始。
	StageIdle Stage = iota
	// StageCollecting 正在抓取和过滤订阅源。
	StageCollecting
	// StageGenerating 正在调用模型。
	StageGenerating
	// StageDelivering 正在推送到 Telegram。
	StageDelivering
	// StageRecording 推送成功，正在保存已推播记录。
	StageRecording
	// StageDone 运行结束。
	StageDone
	// StageFailed 运行失败。
	StageFailed
)

var stageNames = [...]string{
	"Idle",
	"Collecting",
	"Generating",
	"Delivering",
	"Recording",
	"Done",
	"Failed",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "Unknown"
}

// StageMachine 管理线程安全的阶段转换。
type StageMachine struct {
	mu       sync.RWMutex
	current  Stage
	onChange func(from, to Stage)
}

// NewStageMachine 创建一个初始阶段为 Idle 的状态机。
func NewStageMachine() *StageMachine {
	return &StageMachine{
		current: StageIdle,
	}
}

// SetOnChange 注册阶段变化时的回调函数。
func (sm *StageMachine) SetOnChange(fn func(from, to Stage)) {
	sm.mu.Lock()
	sm.onChange = fn
	sm.mu.Unlock()
}

// Current 返回当前阶段。
func (sm *StageMachine) Current() Stage {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Transition 尝试切换阶段。只有合法的转换才会生效：
//
//	Idle       → Collecting  （新闻摘要）
//	Idle       → Generating  （市场报告不需要抓取）
//	Collecting → Generating
//	Collecting → Delivering  （没有内容，直接推送提示）
//	Generating → Delivering
//	Delivering → Recording   （推送成功且需要记录）
//	Delivering → Done
//	Recording  → Done
//
// 除 Done 外任何阶段都可以转换到 Failed。
func (sm *StageMachine) Transition(to Stage) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !validTransition(sm.current, to) {
		logger.Warnf("[stage] 非法转换 %s → %s", sm.current, to)
		return false
	}

	from := sm.current
	sm.current = to
	logger.Debugf("[stage] %s → %s", from, to)

	if sm.onChange != nil {
		sm.onChange(from, to)
	}
	return true
}

// validTransition 检查阶段转换是否合法。
func validTransition(from, to Stage) bool {
	if to == StageFailed {
		return from != StageDone && from != StageFailed
	}
	switch from {
	case StageIdle:
		return to == StageCollecting || to == StageGenerating
	case StageCollecting:
		return to == StageGenerating || to == StageDelivering
	case StageGenerating:
		return to == StageDelivering
	case StageDelivering:
		return to == StageRecording || to == StageDone
	case StageRecording:
		return to == StageDone
	}
	return false
}
