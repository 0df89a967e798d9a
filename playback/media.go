package playback

// MediaReference 标识一次播放请求
type MediaReference struct {
	ID     string `json:"id"`
	Source string `json:"source"` // 本地路径、file:// 或 http(s):// URI
}

// Observer 接收每次被接受的播放的生命周期：
// OnLoading，引擎就绪后 OnStart，最后恰好一次 OnStop。
//
// 观察者按身份注册和移除，实现必须可比较，通常用指针。
type Observer interface {
	OnLoading(media MediaReference)
	OnStart(media MediaReference)
	OnStop(media MediaReference, isError bool)
}

// NopObserver 所有回调为空，嵌入后只实现需要的回调
type NopObserver struct{}

func (NopObserver) OnLoading(MediaReference)    {}
func (NopObserver) OnStart(MediaReference)      {}
func (NopObserver) OnStop(MediaReference, bool) {}

// ObserverFuncs 把函数适配为 Observer，nil 函数跳过，需以指针注册
type ObserverFuncs struct {
	Loading func(media MediaReference)
	Start   func(media MediaReference)
	Stop    func(media MediaReference, isError bool)
}

func (f *ObserverFuncs) OnLoading(media MediaReference) {
	if f.Loading != nil {
		f.Loading(media)
	}
}

func (f *ObserverFuncs) OnStart(media MediaReference) {
	if f.Start != nil {
		f.Start(media)
	}
}

func (f *ObserverFuncs) OnStop(media MediaReference, isError bool) {
	if f.Stop != nil {
		f.Stop(media, isError)
	}
}
