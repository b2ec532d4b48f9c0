// Package telakit реализует сервер и клиент протокола удалённого рисования Tela.
//
// Сервер хранит поверхность в пикселях и логическую сетку N×N, принимает
// одновременные TCP подключения и меняет поверхность по текстовым командам,
// по одной команде на строку.
//
// Протокол:
//
//	PO x,y          точка в клетке (x,y) активным цветом
//	PC x,y,r,g,b    точка в клетке (x,y) цветом (r,g,b)
//	CL n            очистить поверхность и нарисовать сетку n×n
//	CO r,g,b        сменить активный цвет
//
// Строки короче 3 байт пропускаются. Некорректные строки отбрасываются
// с записью в лог, соединение при этом не закрывается. Сервер ничего
// не отвечает клиенту.
//
// Основные компоненты:
//
// Decode / Command - разбор и кодирование строк протокола
// LineReader - чтение строк из одного соединения
// DrawingState - активный цвет, размер сетки, преобразование клетки в пиксели
// Dispatcher - применение команд к состоянию и Backend под одной блокировкой
// Connection - обработчик одного соединения
// Server - приём подключений и graceful shutdown
// Client - клиент с историей команд и воспроизведением из файла
// Metrics - метрики Prometheus
//
// Пример использования:
//
//	state, err := telakit.NewDrawingState(640, 640, telakit.DefaultGridSize)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	dispatcher := telakit.NewDispatcher(state, canvas.New(640, 640), nil)
//	dispatcher.Reset()
//
//	server := telakit.NewServer("127.0.0.1:8800", dispatcher, telakit.Config{
//	    Logger: telakit.NewSlogLogger(slog.Default()),
//	})
//	done, err := server.Start(context.Background())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Graceful shutdown
//	server.Stop()
//	<-done
//
// Использование клиента:
//
//	client := telakit.NewClient(telakit.ClientConfig{})
//	if err := client.Connect(ctx, "127.0.0.1:8800"); err != nil {
//	    log.Fatal(err)
//	}
//	client.SetColor(0, 255, 0)
//	client.Point(3, 4)
//	client.SaveHistoryFile("drawing.txt")
package telakit
